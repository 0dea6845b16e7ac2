package config

import (
	"errors"
	"time"
)

const (
	EnvPrefix = "IMG2IMG"

	DefaultHome     = "~/.img2img"
	DefaultModelID  = "nitrosocke/Ghibli-Diffusion"
	DefaultSource   = "assets/sketch-mountains-input.jpg"
	DefaultPrompt   = "A painting in the style of van gogh."
	DefaultOutput   = "output.png"
	DefaultAssets   = "assets"
	DefaultBackend  = BackendWorker
	DefaultHost     = "localhost"
	DefaultPort     = 8881
	DefaultWorker   = "localhost:8882"
	DefaultPoolSize = 1

	// The worker can take minutes to load a pipeline on CPU.
	DefaultWorkerTimeout = 500 * time.Second
)

const (
	BackendWorker  = "worker"
	BackendPreview = "preview"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

var (
	ErrConfigNotLoaded = errors.New("config not loaded")
	ErrHomeExpand      = errors.New("failed to expand home directory")
)
