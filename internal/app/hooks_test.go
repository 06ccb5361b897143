package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

func TestEvalHookExpr(t *testing.T) {
	hc := HookContext{ClusterDir: "/tmp/cluster_default", Profile: "default", Hostname: "host-1", PID: 42}

	out, err := evalHookExpr(`cluster_dir + "/extra"`, hc)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cluster_default/extra", out)

	out, err = evalHookExpr(`pid > 0 && profile == "default"`, hc)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	t.Setenv("IPCONTROLLER_TEST_HOOK", "yes")
	out, err = evalHookExpr(`env["IPCONTROLLER_TEST_HOOK"]`, hc)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestEvalHookExprErrors(t *testing.T) {
	hc := HookContext{}

	_, err := evalHookExpr(`this is not cel`, hc)
	assert.Error(t, err)

	_, err = evalHookExpr(`unknown_var + 1`, hc)
	assert.Error(t, err)
}

func TestRunAllSurvivesFailures(t *testing.T) {
	r := NewHookRunner(logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel)))

	var called bool
	r.RegisterHook("mark", func(_ context.Context, hc HookContext) error {
		called = true
		assert.Equal(t, "work", hc.Profile)
		return nil
	})
	r.RegisterHook("broken", func(context.Context, HookContext) error {
		return assert.AnError
	})

	// A bad expression is logged and skipped, never fatal.
	r.RunAll(context.Background(), []string{`syntax error here`, `1 + 1`}, HookContext{Profile: "work"})
	assert.True(t, called)
}
