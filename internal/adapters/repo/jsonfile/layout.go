// Package jsonfile implements the storage ports on top of JSON files:
// roles.json for the role collection, a ledger directory with one file per
// work item, and sessions/active.json for the session collection. All writes
// go through a temp-file-then-rename sequence so readers never observe a
// partially written record.
package jsonfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"

	storageDirKey   = "storage.dir"
	rolesPathKey    = "storage.roles_path"
	workDirKey      = "storage.work_dir"
	sessionsPathKey = "storage.sessions_path"

	storageConfigDir = ".swarmops"
	rolesFileName    = "roles.json"
	workDirName      = "work"
	sessionsDirName  = "sessions"
	sessionsFileName = "active.json"

	storageFileMode = 0o600
	storageDirMode  = 0o700

	tempFilePattern = ".swarmops-*.json.tmp"
)

// Layout holds the resolved storage locations for the three stores.
type Layout struct {
	RolesPath    string
	WorkDir      string
	SessionsPath string
}

// ResolveLayout reads the storage paths from config, falling back to
// ~/.swarmops defaults. A missing config file is not an error.
func ResolveLayout(cfg *viper.Viper) (Layout, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultDir := filepath.Join(homeDir, storageConfigDir)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(defaultDir)
	cfg.SetDefault(storageDirKey, defaultDir)

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Layout{}, fmt.Errorf("read config file: %w", err)
		}
	}

	storageDir := cfg.GetString(storageDirKey)
	if storageDir == "" {
		return Layout{}, errors.New("storage dir is empty")
	}

	cfg.SetDefault(rolesPathKey, filepath.Join(storageDir, rolesFileName))
	cfg.SetDefault(workDirKey, filepath.Join(storageDir, workDirName))
	cfg.SetDefault(sessionsPathKey, filepath.Join(storageDir, sessionsDirName, sessionsFileName))

	layout := Layout{
		RolesPath:    cfg.GetString(rolesPathKey),
		WorkDir:      cfg.GetString(workDirKey),
		SessionsPath: cfg.GetString(sessionsPathKey),
	}

	if layout.RolesPath, err = normalizePath(layout.RolesPath); err != nil {
		return Layout{}, err
	}
	if layout.WorkDir, err = normalizePath(layout.WorkDir); err != nil {
		return Layout{}, err
	}
	if layout.SessionsPath, err = normalizePath(layout.SessionsPath); err != nil {
		return Layout{}, err
	}

	return layout, nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

// Store instances sharing a path share a lock, so concurrent callers in the
// same process observe a serialized history per store.
var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), storageDirMode); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp storage file: %w", err)
	}

	if err := tempFile.Chmod(storageFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp storage file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp storage file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}

	cleanup = false
	return nil
}
