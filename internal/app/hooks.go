package app

import (
	"context"
	"os"
	"strings"

	"github.com/google/cel-go/cel"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

// HookContext is the startup state exposed to setup hooks.
type HookContext struct {
	ClusterDir string
	Profile    string
	Hostname   string
	PID        int
}

// HookFunc is a Go setup hook registered alongside configured
// expressions.
type HookFunc func(ctx context.Context, hc HookContext) error

type namedHook struct {
	name string
	fn   HookFunc
}

// HookRunner evaluates startup hooks: the CEL expressions from
// global.import_statements plus any registered Go hooks. Hook failures
// are logged and skipped; a broken hook never aborts startup.
type HookRunner struct {
	logger logpkg.Logger
	hooks  []namedHook
}

func NewHookRunner(logger logpkg.Logger) *HookRunner {
	return &HookRunner{logger: logger.With(logpkg.Component("hooks"))}
}

// RegisterHook adds a Go hook run after the configured expressions.
func (r *HookRunner) RegisterHook(name string, fn HookFunc) {
	r.hooks = append(r.hooks, namedHook{name: name, fn: fn})
}

// RunAll evaluates every configured expression and registered hook once.
func (r *HookRunner) RunAll(ctx context.Context, exprs []string, hc HookContext) {
	for _, expr := range exprs {
		out, err := evalHookExpr(expr, hc)
		if err != nil {
			r.logger.Warn("setup hook failed",
				logpkg.Str("expr", expr), logpkg.Err(err))
			continue
		}
		r.logger.Info("setup hook evaluated",
			logpkg.Str("expr", expr), logpkg.F("result", out))
	}
	for _, h := range r.hooks {
		if err := h.fn(ctx, hc); err != nil {
			r.logger.Warn("setup hook failed",
				logpkg.Str("hook", h.name), logpkg.Err(err))
		}
	}
}

func evalHookExpr(expr string, hc HookContext) (any, error) {
	expr = strings.TrimSpace(expr)
	env, err := cel.NewEnv(
		cel.Variable("cluster_dir", cel.StringType),
		cel.Variable("profile", cel.StringType),
		cel.Variable("hostname", cel.StringType),
		cel.Variable("pid", cel.IntType),
		cel.Variable("env", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	out, _, err := prog.Eval(map[string]any{
		"cluster_dir": hc.ClusterDir,
		"profile":     hc.Profile,
		"hostname":    hc.Hostname,
		"pid":         int64(hc.PID),
		"env":         environMap(),
	})
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func environMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}
