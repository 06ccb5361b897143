package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cluster-dir", "", "")
	flags.String("profile", "", "")
	flags.Bool("reuse-furls", false, "")
	flags.Bool("log-to-file", false, "")
	flags.String("client-ip", "", "")
	flags.Int("client-port", 0, "")
	flags.String("client-location", "", "")
	flags.Bool("x", false, "")
	flags.String("engine-ip", "", "")
	flags.Int("engine-port", 0, "")
	flags.String("engine-location", "", "")
	flags.Bool("y", false, "")
	return flags
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLayerPrecedence(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	// default layer has profile "default"; file overrides it; cmdline wins.
	path := writeConfigFile(t, "global:\n  profile: filed\n")
	require.NoError(t, store.LoadFile(path))

	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--profile", "cli"}))
	require.NoError(t, store.LoadFlags(flags))

	settings, err := store.Resolved()
	require.NoError(t, err)
	assert.Equal(t, "cli", settings.Global.Profile)
}

func TestUnsetHigherLayerDoesNotMask(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	path := writeConfigFile(t, "client:\n  port: 10105\n")
	require.NoError(t, store.LoadFile(path))

	// cmdline sets an unrelated key only
	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--engine-port", "10201"}))
	require.NoError(t, store.LoadFlags(flags))

	settings, err := store.Resolved()
	require.NoError(t, err)
	assert.Equal(t, 10105, settings.Client.Port, "file value must survive an unset cmdline key")
	assert.Equal(t, 10201, settings.Engine.Port)
	assert.Equal(t, "default", settings.Global.Profile, "default must survive both unset layers")
}

func TestUnchangedFlagsAreSkipped(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	flags := newTestFlags()
	require.NoError(t, flags.Parse(nil))
	require.NoError(t, store.LoadFlags(flags))

	assert.False(t, store.CmdlineHas(KeyClusterDir))
	assert.False(t, store.CmdlineHas(KeyProfile))
}

func TestSecuritySwitchesInvert(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--x", "--y"}))
	require.NoError(t, store.LoadFlags(flags))

	settings, err := store.Resolved()
	require.NoError(t, err)
	assert.False(t, settings.Client.Secure, "-x disables client transport security")
	assert.False(t, settings.Engine.Secure, "-y disables engine transport security")
}

func TestDefaults(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	settings, err := store.Resolved()
	require.NoError(t, err)

	assert.Equal(t, "", settings.Global.ClusterDir)
	assert.Equal(t, "default", settings.Global.Profile)
	assert.False(t, settings.Global.ReuseFurls)
	assert.False(t, settings.Global.LogToFile)
	assert.Equal(t, "security", settings.Global.SecurityDirName)
	assert.Equal(t, "log", settings.Global.LogDirName)
	assert.True(t, settings.Client.Secure)
	assert.True(t, settings.Engine.Secure)
	assert.Equal(t, "ipcontroller-client.pem", settings.Client.CertFile)
	assert.Equal(t, "ipcontroller-engine.pem", settings.Engine.CertFile)
	assert.Nil(t, settings.Client.ReuseFurls, "per-binding reuse inherits the global toggle when unset")
}

func TestEchoBackAcrossLayers(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	require.NoError(t, store.SetDefault(KeyClusterDir, "/srv/cluster_a"))
	require.NoError(t, store.SetCmdline(KeyClusterDir, "/srv/cluster_a"))

	assert.Equal(t, "/srv/cluster_a", store.DefaultString(KeyClusterDir))
	assert.Equal(t, "/srv/cluster_a", store.CmdlineString(KeyClusterDir))
	assert.Equal(t, "/srv/cluster_a", store.String(KeyClusterDir))
}

func TestImportStatementsFromFile(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	path := writeConfigFile(t, "global:\n  import_statements:\n    - \"1 + 1 == 2\"\n    - \"profile == 'default'\"\n")
	require.NoError(t, store.LoadFile(path))

	settings, err := store.Resolved()
	require.NoError(t, err)
	require.Len(t, settings.Global.ImportStatements, 2)
	assert.Equal(t, "1 + 1 == 2", settings.Global.ImportStatements[0])
}
