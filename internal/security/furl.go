package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Furl is a capability connection file. A party holding it knows where to
// connect and carries the secret the listener demands for that capability.
type Furl struct {
	Location   string `yaml:"location"`
	Capability string `yaml:"capability"`
	Secret     string `yaml:"secret"`
}

// Default connection file names.
const (
	TaskFurlFile        = "ipcontroller-tc.furl"
	MultiEngineFurlFile = "ipcontroller-mec.furl"
	EngineFurlFile      = "ipcontroller-engine.furl"
)

// Provisioner writes credentials into a cluster's security directory.
// When Reuse is set, existing files are kept so that restarted
// controllers honor connection files already handed out.
type Provisioner struct {
	Dir    string
	Reuse  bool
	Logger logpkg.Logger
}

// EnsureFurl returns the connection file for one capability, loading the
// existing one under the reuse policy or generating a fresh secret
// otherwise. Files are written 0600.
func (p *Provisioner) EnsureFurl(filename, capability, location string) (Furl, error) {
	path := filepath.Join(p.Dir, filename)

	if p.Reuse {
		f, err := LoadFurl(path)
		if err == nil {
			if f.Capability != capability {
				return Furl{}, fmt.Errorf("furl %s: capability %q, want %q", path, f.Capability, capability)
			}
			if f.Location != location {
				f.Location = location
				if err := writeFurl(path, f); err != nil {
					return Furl{}, err
				}
			}
			if p.Logger != nil {
				p.Logger.Debug("reusing connection file", logpkg.Str("path", path))
			}
			return f, nil
		}
		if !os.IsNotExist(err) {
			return Furl{}, err
		}
	}

	secret, err := newSecret()
	if err != nil {
		return Furl{}, fmt.Errorf("generate secret: %w", err)
	}
	f := Furl{Location: location, Capability: capability, Secret: secret}
	if err := writeFurl(path, f); err != nil {
		return Furl{}, err
	}
	if p.Logger != nil {
		p.Logger.Info("wrote connection file",
			logpkg.Str("path", path), logpkg.Str("capability", capability))
	}
	return f, nil
}

// LoadFurl reads and decodes a connection file.
func LoadFurl(path string) (Furl, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Furl{}, err
	}
	var f Furl
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Furl{}, fmt.Errorf("parse furl %s: %w", path, err)
	}
	if f.Secret == "" {
		return Furl{}, fmt.Errorf("furl %s: missing secret", path)
	}
	return f, nil
}

func writeFurl(path string, f Furl) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write furl: %w", err)
	}
	return nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
