package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath replaces a leading "~" with the user's home directory and
// cleans the result. Empty paths stay empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}

	return filepath.Clean(path), nil
}

// SplitName splits "dir/name.ext" into its directory, base name and extension.
func SplitName(path string) (dir, name, ext string) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	return filepath.Clean(dir), strings.TrimSuffix(file, ext), ext
}
