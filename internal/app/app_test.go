package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipcluster/controller/internal/config"
	"github.com/ipcluster/controller/internal/controller"
	"github.com/ipcluster/controller/internal/security"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

func testLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
}

func testBackend(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func insecureSettings() config.Settings {
	s := config.Default()
	s.Client.Secure = false
	s.Engine.Secure = false
	s.Client.IP = "127.0.0.1"
	s.Engine.IP = "127.0.0.1"
	return s
}

func TestAssembleWritesCredentials(t *testing.T) {
	secDir := t.TempDir()
	asm := &Assembler{Settings: insecureSettings(), SecurityDir: secDir, Logger: testLogger()}

	group, err := asm.Assemble(testBackend(t))
	require.NoError(t, err)
	require.Len(t, group.listeners, 2)
	assert.Equal(t, "client", group.listeners[0].name)
	assert.Equal(t, "engine", group.listeners[1].name)

	for _, name := range []string{
		security.TaskFurlFile, security.MultiEngineFurlFile, security.EngineFurlFile,
	} {
		f, err := security.LoadFurl(filepath.Join(secDir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, f.Secret)
		assert.Contains(t, f.Location, "http://127.0.0.1:")
	}
}

func TestAssembleSecureGeneratesCerts(t *testing.T) {
	secDir := t.TempDir()
	s := insecureSettings()
	s.Client.Secure = true
	s.Engine.Secure = true
	asm := &Assembler{Settings: s, SecurityDir: secDir, Logger: testLogger()}

	_, err := asm.Assemble(testBackend(t))
	require.NoError(t, err)

	for _, name := range []string{"ipcontroller-client.pem", "ipcontroller-engine.pem"} {
		info, err := os.Stat(filepath.Join(secDir, name))
		require.NoError(t, err, name)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	f, err := security.LoadFurl(filepath.Join(secDir, security.TaskFurlFile))
	require.NoError(t, err)
	assert.Contains(t, f.Location, "https://")
}

func TestAssembleRejectsBadSettings(t *testing.T) {
	asm := &Assembler{Settings: insecureSettings(), SecurityDir: t.TempDir(), Logger: testLogger()}

	bad := insecureSettings()
	bad.Client.Port = 70000
	asm.Settings = bad
	_, err := asm.Assemble(testBackend(t))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "client.port", cfgErr.Setting)

	bad = insecureSettings()
	bad.Engine.Secure = true
	bad.Engine.CertFile = ""
	asm.Settings = bad
	_, err = asm.Assemble(testBackend(t))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "engine.cert_file", cfgErr.Setting)
}

func TestReusePolicy(t *testing.T) {
	yes, no := true, false

	assert.False(t, reusePolicy(false, config.BindingSettings{}))
	assert.True(t, reusePolicy(true, config.BindingSettings{}))
	assert.True(t, reusePolicy(false, config.BindingSettings{ReuseFurls: &yes}))
	assert.False(t, reusePolicy(true, config.BindingSettings{ReuseFurls: &no}))
}

func TestRunLifecycle(t *testing.T) {
	clusterDir := filepath.Join(t.TempDir(), "cluster_test")

	store, err := config.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.SetCmdline(config.KeyClusterDir, clusterDir))
	require.NoError(t, store.SetCmdline("global.log_to_file", true))
	require.NoError(t, store.SetCmdline("client.secure", false))
	require.NoError(t, store.SetCmdline("engine.secure", false))
	require.NoError(t, store.SetCmdline("client.ip", "127.0.0.1"))
	require.NoError(t, store.SetCmdline("engine.ip", "127.0.0.1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Store: store}) }()

	secDir := filepath.Join(clusterDir, "security")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(secDir, security.EngineFurlFile))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	info, err := os.Stat(secDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	logPath := filepath.Join(clusterDir, "log", fmt.Sprintf("ipcontroller-%d.log", os.Getpid()))
	_, err = os.Stat(logPath)
	assert.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop on context cancel")
	}
}

func TestRunReadsClusterConfigFile(t *testing.T) {
	clusterDir := filepath.Join(t.TempDir(), "cluster_cfg")
	require.NoError(t, os.MkdirAll(clusterDir, 0o777))

	cfg := "global:\n  log_to_file: true\nclient:\n  secure: false\n  ip: 127.0.0.1\nengine:\n  secure: false\n  ip: 127.0.0.1\n"
	require.NoError(t, os.WriteFile(filepath.Join(clusterDir, config.ConfigFileName), []byte(cfg), 0o644))

	store, err := config.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.SetCmdline(config.KeyClusterDir, clusterDir))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Store: store}) }()

	logDir := filepath.Join(clusterDir, "log")
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(logDir)
		return err == nil && len(entries) > 0
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunFailsWhenLogFileUnusable(t *testing.T) {
	clusterDir := filepath.Join(t.TempDir(), "cluster_logfail")
	logDir := filepath.Join(clusterDir, "log")
	// Squat a directory on the per-process log file path so the
	// diagnostics step cannot open it.
	logPath := filepath.Join(logDir, fmt.Sprintf("ipcontroller-%d.log", os.Getpid()))
	require.NoError(t, os.MkdirAll(logPath, 0o777))

	store, err := config.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.SetCmdline(config.KeyClusterDir, clusterDir))
	require.NoError(t, store.SetCmdline("global.log_to_file", true))
	require.NoError(t, store.SetCmdline("client.secure", false))
	require.NoError(t, store.SetCmdline("engine.secure", false))

	err = Run(context.Background(), Options{Store: store})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init diagnostics")

	// Startup aborted before provisioning: no credentials, no sockets.
	for _, name := range []string{
		security.TaskFurlFile, security.MultiEngineFurlFile, security.EngineFurlFile,
	} {
		_, statErr := os.Stat(filepath.Join(clusterDir, "security", name))
		assert.True(t, os.IsNotExist(statErr), name)
	}
}

type orderRecorder struct {
	mu  sync.Mutex
	seq []string
}

func (r *orderRecorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = append(r.seq, ev)
}

func (r *orderRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.seq...)
}

type stubBackend struct{ rec *orderRecorder }

func (b *stubBackend) Start(context.Context) error {
	b.rec.add("backend.start")
	return nil
}

func (b *stubBackend) Close() error {
	b.rec.add("backend.close")
	return nil
}

type stubListener struct {
	name string
	rec  *orderRecorder
}

func (l *stubListener) ListenAndServe(ctx context.Context, _ string) error {
	l.rec.add("listen:" + l.name)
	<-ctx.Done()
	return nil
}

func (l *stubListener) Close() { l.rec.add("close:" + l.name) }

func TestGroupStartAndStopOrder(t *testing.T) {
	rec := &orderRecorder{}
	g := &ServiceGroup{
		backend: &stubBackend{rec: rec},
		listeners: []groupMember{
			{name: "client", srv: &stubListener{name: "client", rec: rec}},
			{name: "engine", srv: &stubListener{name: "engine", rec: rec}},
		},
		logger: testLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.events()) == 3 },
		5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	seq := rec.events()
	require.Len(t, seq, 6)
	// Backend strictly first; listener order among themselves is free.
	assert.Equal(t, "backend.start", seq[0])
	assert.ElementsMatch(t, []string{"listen:client", "listen:engine"}, seq[1:3])
	// Stop runs in reverse: listeners close back to front, backend last.
	assert.Equal(t, []string{"close:engine", "close:client", "backend.close"}, seq[3:])
}

func TestConfigErrorMessage(t *testing.T) {
	err := configErrorf("client.port", "invalid port %d", -1)
	assert.Equal(t, `config client.port: invalid port -1`, err.Error())

	wrapped := &ConfigError{Setting: "engine.cert_file", Reason: "provision certificate", Err: os.ErrPermission}
	assert.ErrorIs(t, wrapped, os.ErrPermission)
	assert.Contains(t, wrapped.Error(), "engine.cert_file")
}
