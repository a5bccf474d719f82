package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the per-user directory holding config and history.
const DataDirName = ".querylens"

// DataDir returns ~/.querylens, or a relative .querylens when the home
// directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// SafeWriteFile writes data to a temp file beside path and atomically
// renames it into place, creating the parent directory if needed.
func SafeWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}
