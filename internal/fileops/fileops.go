package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigNotFound is returned when a configuration file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// FileOps defines operations on the vumeter config directory
type FileOps interface {
	// GetConfigDir returns the full path to the vumeter config directory
	GetConfigDir() string

	// GetConfigPath returns the full path of filename in the config directory
	GetConfigPath(filename string) string

	// GetLogDir returns the directory for log files
	GetLogDir() string

	// SaveConfig saves data to a file in the config directory
	SaveConfig(filename string, data []byte) error

	// LoadConfig loads data from a file in the config directory
	LoadConfig(filename string) ([]byte, error)

	// EnsureDirectories creates necessary directories if they don't exist
	EnsureDirectories() error
}

// DefaultFileOps implements FileOps on the local filesystem
type DefaultFileOps struct {
	configDir string
}

// NewDefaultFileOps uses ~/.config/vumeter
func NewDefaultFileOps() (*DefaultFileOps, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return NewFileOps(filepath.Join(homeDir, ".config", "vumeter")), nil
}

// NewFileOps roots the config directory at dir
func NewFileOps(dir string) *DefaultFileOps {
	return &DefaultFileOps{configDir: dir}
}

func (f *DefaultFileOps) GetConfigDir() string {
	return f.configDir
}

func (f *DefaultFileOps) GetConfigPath(filename string) string {
	return filepath.Join(f.configDir, filename)
}

func (f *DefaultFileOps) GetLogDir() string {
	return filepath.Join(f.configDir, "logs")
}

func (f *DefaultFileOps) SaveConfig(filename string, data []byte) error {
	return os.WriteFile(f.GetConfigPath(filename), data, 0o644)
}

func (f *DefaultFileOps) LoadConfig(filename string) ([]byte, error) {
	data, err := os.ReadFile(f.GetConfigPath(filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	return data, err
}

func (f *DefaultFileOps) EnsureDirectories() error {
	for _, dir := range []string{f.configDir, f.GetLogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
