package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cozy-creator/hf-hub/hub"
	hubpipeline "github.com/cozy-creator/hf-hub/hub/pipeline"
	"github.com/cozy-creator/img2img/internal/types"
	"go.uber.org/zap"
)

const ModelIndexFile = "model_index.json"

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Resolver maps a model identifier to a local diffusers snapshot, downloading
// it from the Hugging Face hub when allowed.
type Resolver struct {
	hubClient *hub.Client
	download  bool
	logger    *zap.Logger
}

type Option func(*Resolver)

func WithCacheDir(dir string) Option {
	return func(r *Resolver) {
		if dir != "" {
			r.hubClient.CacheDir = dir
		}
	}
}

// WithDownload controls whether missing snapshots are fetched from the hub.
func WithDownload(download bool) Option {
	return func(r *Resolver) {
		r.download = download
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger.Named("models")
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		hubClient: hub.DefaultClient(),
		download:  true,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Resolver) CacheDir() string {
	return r.hubClient.CacheDir
}

// Resolve returns the snapshot directory for modelID. Local directories that
// contain a model_index.json are returned as is.
func (r *Resolver) Resolve(ctx context.Context, modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return "", types.Errorf(types.ErrResourceResolution, "model id is required")
	}

	if info, err := os.Stat(modelID); err == nil && info.IsDir() {
		if !pathExists(filepath.Join(modelID, ModelIndexFile)) {
			return "", types.Errorf(types.ErrResourceResolution, "%s has no %s", modelID, ModelIndexFile)
		}
		return filepath.Abs(modelID)
	}

	if !repoIDPattern.MatchString(modelID) {
		return "", types.Errorf(types.ErrResourceResolution, "invalid model id %q", modelID)
	}

	if snapshot, ok := r.cachedSnapshot(modelID); ok {
		r.logger.Debug("Model found in cache", zap.String("model_id", modelID), zap.String("snapshot", snapshot))
		return snapshot, nil
	}

	if !r.download {
		return "", types.Errorf(types.ErrResourceResolution, "model %s is not in the cache", modelID)
	}

	if err := r.Download(ctx, modelID); err != nil {
		return "", err
	}

	snapshot, ok := r.cachedSnapshot(modelID)
	if !ok {
		return "", types.Errorf(types.ErrResourceResolution, "model %s was downloaded but no snapshot was found", modelID)
	}

	return snapshot, nil
}

// Download fetches the diffusers pipeline for repoID into the hub cache.
func (r *Resolver) Download(ctx context.Context, repoID string) error {
	if err := ctx.Err(); err != nil {
		return types.Wrap(types.ErrResourceResolution, err)
	}

	r.logger.Info("Downloading from HuggingFace", zap.String("repo_id", repoID))

	downloader := hubpipeline.NewDiffusionPipelineDownloader(r.hubClient)
	if _, err := downloader.Download(repoID, "", nil); err != nil {
		return types.Wrap(types.ErrResourceResolution, fmt.Errorf("failed to download model from HuggingFace: %w", err))
	}

	return nil
}

func (r *Resolver) cachedSnapshot(repoID string) (string, bool) {
	storageFolder := filepath.Join(r.hubClient.CacheDir, RepoFolderName(repoID, "model"))

	commitHash, err := os.ReadFile(filepath.Join(storageFolder, "refs", "main"))
	if err != nil {
		return "", false
	}

	snapshot := filepath.Join(storageFolder, "snapshots", strings.TrimSpace(string(commitHash)))
	if !pathExists(filepath.Join(snapshot, ModelIndexFile)) {
		return "", false
	}

	return snapshot, true
}

// RepoFolderName converts "org/name" to the hub cache folder "models--org--name".
func RepoFolderName(repoID string, repoType string) string {
	parts := append([]string{repoType + "s"}, strings.Split(repoID, "/")...)
	return strings.Join(parts, "--")
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
