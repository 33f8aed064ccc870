package psgs

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConvertToAbsolute returns the path relative to the given base directory
// when the path isn't already absolute.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}

// FileExists returns true if there is a file or directory at the path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SyncDir flushes directory entries of the given directory to disk.
func SyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("can't sync directory %s: %v", dir, err)
	}
	return nil
}
