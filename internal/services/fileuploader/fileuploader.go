package fileuploader

import (
	"context"
	"errors"

	"github.com/cozy-creator/img2img/internal/services/filestorage"
	"github.com/cozy-creator/img2img/internal/utils/hashutil"
	"github.com/gammazero/workerpool"
)

var ErrNoStorage = errors.New("file storage is not configured")

// Result is delivered once per upload.
type Result struct {
	URL string
	Err error
}

type Uploader struct {
	wp          *workerpool.WorkerPool
	filestorage filestorage.FileStorage
}

func NewFileUploader(filestorage filestorage.FileStorage, maxWorkers int) *Uploader {
	return &Uploader{
		wp:          workerpool.New(maxWorkers),
		filestorage: filestorage,
	}
}

// Stop waits for queued uploads to finish.
func (w *Uploader) Stop() {
	w.wp.StopWait()
}

func (w *Uploader) Upload(ctx context.Context, file filestorage.FileInfo, response chan<- Result) {
	w.wp.Submit(func() {
		response <- w.upload(ctx, file)
	})
}

// UploadBytes stores content under its blake3 content name.
func (w *Uploader) UploadBytes(ctx context.Context, content []byte, extension string, response chan<- Result) {
	w.Upload(ctx, filestorage.NewFileInfo(hashutil.ContentName(content), extension, content), response)
}

func (w *Uploader) upload(ctx context.Context, file filestorage.FileInfo) Result {
	if w.filestorage == nil {
		return Result{Err: ErrNoStorage}
	}

	url, err := w.filestorage.Upload(ctx, file)
	return Result{URL: url, Err: err}
}
