package filestorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type LocalFileStorage struct {
	assetsDir string
	baseURL   string
}

func NewLocalFileStorage(assetsDir string, baseURL string) *LocalFileStorage {
	return &LocalFileStorage{
		assetsDir: assetsDir,
		baseURL:   baseURL,
	}
}

// Upload writes the file under the assets directory. The file appears
// complete or not at all.
func (u *LocalFileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	if err := validate(file); err != nil {
		return "", err
	}

	filedest := filepath.Join(u.assetsDir, file.Filename())
	if err := WriteFileAtomic(filedest, file.Content, 0o644); err != nil {
		return "", err
	}

	if u.baseURL != "" {
		return fmt.Sprintf("%s/%s", u.baseURL, file.Filename()), nil
	}

	return filedest, nil
}

// ResolveFile returns the path of a stored file if it exists.
func (u *LocalFileStorage) ResolveFile(filename string) (string, error) {
	resolved := filepath.Join(u.assetsDir, filepath.Base(filename))
	if _, err := os.Stat(resolved); err != nil {
		return "", err
	}

	return resolved, nil
}

func (u *LocalFileStorage) AssetsDir() string {
	return u.assetsDir
}

// WriteFileAtomic writes content to a temp file next to dest and renames it
// into place.
func WriteFileAtomic(dest string, content []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save content to file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	return nil
}
