package filestorage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/types"
)

var ErrEmptyName = errors.New("file name is required")

type FileInfo struct {
	Name      string
	Extension string
	Content   []byte
}

func (f FileInfo) Filename() string {
	return f.Name + f.Extension
}

// FileStorage persists generated images and returns where they ended up.
type FileStorage interface {
	Upload(ctx context.Context, file FileInfo) (string, error)
}

type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL makes local uploads return URLs under baseURL instead of paths.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func NewFileInfo(name string, extension string, content []byte) FileInfo {
	return FileInfo{
		Name:      name,
		Extension: extension,
		Content:   content,
	}
}

func NewFileStorage(ctx context.Context, cfg *config.Config, opts ...Option) (FileStorage, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch strings.ToLower(cfg.Filesystem) {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg.AssetsDir, o.baseURL), nil
	case config.FilesystemS3:
		return NewS3FileStorage(ctx, cfg.S3)
	default:
		return nil, types.Errorf(types.ErrConfiguration, "invalid filesystem type %s", cfg.Filesystem)
	}
}

func validate(file FileInfo) error {
	if file.Name == "" {
		return ErrEmptyName
	}
	if len(file.Content) == 0 {
		return fmt.Errorf("file %s has no content", file.Filename())
	}

	return nil
}
