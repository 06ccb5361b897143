package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ipcluster/controller/internal/cluster"
	"github.com/ipcluster/controller/internal/config"
	"github.com/ipcluster/controller/internal/controller"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Options carries the runtime inputs. The store arrives with defaults
// and command line flags already loaded; the per-cluster file layer is
// loaded here once the cluster directory is known.
type Options struct {
	Store *config.Store
	// Hooks, when set, replaces the default hook runner. Tests and
	// embedders use it to register Go hooks before startup.
	Hooks *HookRunner
}

// Run is the controller lifecycle: resolve configuration and the cluster
// directory, provision directories and credentials, assemble the service
// group, and serve until ctx is cancelled or a signal arrives. Every
// step before the serve loop is fatal on error.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := opts.Store

	clusterDir, err := cluster.Resolve(store)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(clusterDir, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		if err := store.LoadFile(cfgPath); err != nil {
			return fmt.Errorf("load %s: %w", cfgPath, err)
		}
	}

	pre, err := store.Resolved()
	if err != nil {
		return err
	}
	dirs, err := cluster.Provision(store, clusterDir, pre.Global.SecurityDirName, pre.Global.LogDirName)
	if err != nil {
		return err
	}

	settings, err := store.Resolved()
	if err != nil {
		return err
	}

	logger, err := initLogging(settings.Global, dirs.Log)
	if err != nil {
		return err
	}
	logpkg.RedirectStdLog(logger)

	logger.Info("starting controller",
		logpkg.Str("cluster_dir", clusterDir),
		logpkg.Str("profile", settings.Global.Profile),
		logpkg.Int("pid", os.Getpid()))

	hooks := opts.Hooks
	if hooks == nil {
		hooks = NewHookRunner(logger)
	}
	hostname, _ := os.Hostname()
	hooks.RunAll(sctx, settings.Global.ImportStatements, HookContext{
		ClusterDir: clusterDir,
		Profile:    settings.Global.Profile,
		Hostname:   hostname,
		PID:        os.Getpid(),
	})

	backend, err := controller.New(controller.Options{
		ArchiveDir: filepath.Join(clusterDir, "tasks"),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("open task archive: %w", err)
	}

	asm := &Assembler{Settings: settings, SecurityDir: dirs.Security, Logger: logger}
	group, err := asm.Assemble(backend)
	if err != nil {
		_ = backend.Close()
		return err
	}

	return group.Run(sctx)
}

// initLogging builds the process logger: a per-process file under the
// log directory when log_to_file is set, stdout otherwise. An unusable
// log file aborts startup; no listener opens without diagnostics.
func initLogging(g config.GlobalSettings, logDir string) (logpkg.Logger, error) {
	cfg := &logpkg.Config{Level: g.LogLevel, Format: g.LogFormat}
	if g.LogToFile {
		cfg.FilePath = filepath.Join(logDir, fmt.Sprintf("%s-%d.log", config.AppName, os.Getpid()))
	}
	logger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init diagnostics: %w", err)
	}
	return logger, nil
}
