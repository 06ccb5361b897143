package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Delim separates path segments in dotted setting keys.
const Delim = "."

// Keys for settings that are read or written by name across layers.
const (
	KeyClusterDir  = "global.cluster_dir"
	KeyProfile     = "global.profile"
	KeySecurityDir = "global.security_dir"
	KeyLogDir      = "global.log_dir"
)

// Store holds the three configuration layers. Precedence is
// cmdline > file > defaults; an unset key in a higher layer never masks a
// set key in a lower one.
type Store struct {
	defaults *koanf.Koanf
	file     *koanf.Koanf
	cmdline  *koanf.Koanf
}

// NewStore creates a Store with the built-in defaults loaded into the
// bottom layer.
func NewStore() (*Store, error) {
	s := &Store{
		defaults: koanf.New(Delim),
		file:     koanf.New(Delim),
		cmdline:  koanf.New(Delim),
	}
	if err := s.defaults.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	return s, nil
}

// LoadFile reads a YAML settings file into the file layer.
func (s *Store) LoadFile(path string) error {
	if err := s.file.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("config: load file %s: %w", path, err)
	}
	return nil
}

// LoadFlags reads explicitly set command-line flags into the cmdline layer.
// Flags the user did not pass are skipped so flag defaults never shadow the
// file or default layers.
func (s *Store) LoadFlags(flags *pflag.FlagSet) error {
	if err := s.cmdline.Load(posflag.ProviderWithFlag(flags, Delim, nil, flagToSetting), nil); err != nil {
		return fmt.Errorf("config: load flags: %w", err)
	}
	return nil
}

// flagToSetting maps a CLI flag to its dotted setting key. The -x and -y
// switches invert into the per-binding secure settings.
func flagToSetting(f *pflag.Flag) (string, any) {
	if !f.Changed {
		return "", nil
	}
	switch f.Name {
	case "cluster-dir":
		return KeyClusterDir, f.Value.String()
	case "profile":
		return KeyProfile, f.Value.String()
	case "reuse-furls":
		return "global.reuse_furls", f.Value.String()
	case "log-to-file":
		return "global.log_to_file", f.Value.String()
	case "log-level":
		return "global.log_level", f.Value.String()
	case "log-format":
		return "global.log_format", f.Value.String()
	case "x":
		return "client.secure", false
	case "client-ip":
		return "client.ip", f.Value.String()
	case "client-port":
		return "client.port", f.Value.String()
	case "client-location":
		return "client.location", f.Value.String()
	case "y":
		return "engine.secure", false
	case "engine-ip":
		return "engine.ip", f.Value.String()
	case "engine-port":
		return "engine.port", f.Value.String()
	case "engine-location":
		return "engine.location", f.Value.String()
	}
	return "", nil
}

// SetDefault writes a value into the defaults layer.
func (s *Store) SetDefault(key string, value any) error {
	return s.defaults.Set(key, value)
}

// SetCmdline writes a value into the cmdline layer.
func (s *Store) SetCmdline(key string, value any) error {
	return s.cmdline.Set(key, value)
}

// CmdlineHas reports whether the cmdline layer carries a non-empty value
// for key.
func (s *Store) CmdlineHas(key string) bool {
	return s.cmdline.Exists(key) && s.cmdline.String(key) != ""
}

// CmdlineString reads key from the cmdline layer only.
func (s *Store) CmdlineString(key string) string { return s.cmdline.String(key) }

// DefaultString reads key from the defaults layer only.
func (s *Store) DefaultString(key string) string { return s.defaults.String(key) }

// FileString reads key from the file layer only.
func (s *Store) FileString(key string) string { return s.file.String(key) }

// Merged produces a fresh merged view with layer precedence applied.
func (s *Store) Merged() (*koanf.Koanf, error) {
	merged := koanf.New(Delim)
	for _, layer := range []*koanf.Koanf{s.defaults, s.file, s.cmdline} {
		if err := merged.Merge(layer); err != nil {
			return nil, fmt.Errorf("config: merge layers: %w", err)
		}
	}
	return merged, nil
}

// String reads key from the merged view with full precedence.
func (s *Store) String(key string) string {
	if s.cmdline.Exists(key) {
		return s.cmdline.String(key)
	}
	if s.file.Exists(key) {
		return s.file.String(key)
	}
	return s.defaults.String(key)
}

// Resolved unmarshals the merged layers into a typed Settings snapshot.
// The snapshot is what downstream components consume; the store itself is
// read-only after startup resolution completes.
func (s *Store) Resolved() (Settings, error) {
	merged, err := s.Merged()
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := merged.Unmarshal("", &out); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal settings: %w", err)
	}
	return out, nil
}
