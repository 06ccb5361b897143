package cluster

import (
	"os"
	"path/filepath"

	"github.com/ipcluster/controller/internal/config"
)

// Dirs holds the provisioned subdirectories of a cluster directory.
type Dirs struct {
	Security string
	Log      string
}

// Provision creates the security and log subdirectories under clusterDir
// and records their absolute paths into the store.
//
// The security directory holds credential files, so its owner-only bits are
// re-asserted on every startup even when the directory already exists. The
// log directory holds no secrets; a pre-existing one keeps whatever
// permissions it has. Any failure is fatal and must abort startup before a
// listener opens.
func Provision(store *config.Store, clusterDir, securityName, logName string) (Dirs, error) {
	securityDir := filepath.Join(clusterDir, securityName)
	logDir := filepath.Join(clusterDir, logName)

	if isDir(securityDir) {
		if err := os.Chmod(securityDir, 0o700); err != nil {
			return Dirs{}, &FSError{Op: "chmod", Path: securityDir, Err: err}
		}
	} else if err := ensureDir(securityDir, 0o700); err != nil {
		return Dirs{}, err
	}

	if err := ensureDir(logDir, 0o777); err != nil {
		return Dirs{}, err
	}

	for key, val := range map[string]string{
		config.KeySecurityDir: securityDir,
		config.KeyLogDir:      logDir,
	} {
		if err := store.SetDefault(key, val); err != nil {
			return Dirs{}, &FSError{Op: "record", Path: val, Err: err}
		}
	}
	return Dirs{Security: securityDir, Log: logDir}, nil
}
