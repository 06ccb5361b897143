package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipcluster/controller/internal/config"
)

// FSError is a fatal filesystem provisioning failure. It carries the
// operation and path so startup failures are diagnosable from the message
// alone.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("cluster: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// Resolve determines the absolute cluster directory for this controller
// instance and creates it if absent.
//
// Precedence: an explicit cluster_dir from the cmdline layer, else the
// default layer's value; if that expands to empty, profile-based
// resolution probes cluster_<profile> under the current working directory
// and then under the application data root, creating the latter when
// neither exists. The final path is echoed into both the default and
// cmdline layers so every later read of cluster_dir agrees.
func Resolve(store *config.Store) (string, error) {
	dir := store.CmdlineString(config.KeyClusterDir)
	if dir == "" {
		dir = store.DefaultString(config.KeyClusterDir)
	}
	dir = ExpandPath(dir)

	if dir == "" {
		profile := store.CmdlineString(config.KeyProfile)
		if profile == "" {
			profile = store.DefaultString(config.KeyProfile)
		}
		name := "cluster_" + profile

		cwd, err := os.Getwd()
		if err != nil {
			return "", &FSError{Op: "getwd", Path: ".", Err: err}
		}
		local := filepath.Join(cwd, name)
		if isDir(local) {
			dir = local
		} else {
			dir = filepath.Join(config.AppDataDir(), name)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &FSError{Op: "abs", Path: dir, Err: err}
	}

	// Echo the resolved value into both layers. Without this, a later read
	// from a layer other than the one originally set would diverge.
	if err := store.SetDefault(config.KeyClusterDir, abs); err != nil {
		return "", fmt.Errorf("cluster: record resolved dir: %w", err)
	}
	if err := store.SetCmdline(config.KeyClusterDir, abs); err != nil {
		return "", fmt.Errorf("cluster: record resolved dir: %w", err)
	}

	// World-writable so cooperating processes can place log output under it.
	if err := ensureDir(abs, 0o777); err != nil {
		return "", err
	}
	return abs, nil
}

// ExpandPath expands environment variables and a leading ~ in path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], string(filepath.Separator)))
		}
	}
	return path
}

// ensureDir creates dir (and parents) if missing and asserts the exact
// permission bits on a fresh directory. Existing directories are left as
// found.
func ensureDir(dir string, perm os.FileMode) error {
	if isDir(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return &FSError{Op: "mkdir", Path: dir, Err: err}
	}
	// MkdirAll is subject to the umask; chmod to the exact bits.
	if err := os.Chmod(dir, perm); err != nil {
		return &FSError{Op: "chmod", Path: dir, Err: err}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
