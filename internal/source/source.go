package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/cozy-creator/img2img/internal/types"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

type Kind int

const (
	KindPath Kind = iota
	KindURL
)

func (k Kind) String() string {
	if k == KindURL {
		return "url"
	}

	return "path"
}

// Classify treats http and https references as URLs and everything else as a
// local filesystem path.
func Classify(ref string) Kind {
	u, err := url.Parse(ref)
	if err != nil {
		return KindPath
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KindURL
	default:
		return KindPath
	}
}

// Fetcher reads the raw bytes behind a source reference.
type Fetcher struct {
	client   *http.Client
	progress *mpb.Progress
	logger   *zap.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithProgress renders a download bar for URL sources with a known length.
func WithProgress(progress *mpb.Progress) Option {
	return func(f *Fetcher) {
		f.progress = progress
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch issues exactly one GET for URL references and reads local paths
// directly. Failures to acquire the bytes are types.ErrTransport.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if Classify(ref) == KindURL {
		return f.fetchURL(ctx, ref)
	}

	f.logger.Debug("Reading source image", zap.String("path", ref))
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, types.Wrap(types.ErrTransport, fmt.Errorf("failed to read %s: %w", ref, err))
	}

	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, ref string) ([]byte, error) {
	f.logger.Debug("Fetching source image", zap.String("url", ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrTransport, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, types.Wrap(types.ErrTransport, fmt.Errorf("failed to fetch %s: %w", ref, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, types.Errorf(types.ErrTransport, "fetching %s returned status %d", ref, resp.StatusCode)
	}

	var (
		body io.Reader = resp.Body
		bar  *mpb.Bar
	)
	if f.progress != nil && resp.ContentLength > 0 {
		bar = f.progress.AddBar(resp.ContentLength,
			mpb.PrependDecorators(
				decor.Name(path.Base(req.URL.Path), decor.WC{W: 40, C: decor.DidentRight}),
				decor.CountersKibiByte("% .2f / % .2f"),
			),
			mpb.AppendDecorators(
				decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
			),
		)
		body = bar.ProxyReader(resp.Body)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		if bar != nil {
			bar.Abort(false)
		}
		return nil, types.Wrap(types.ErrTransport, fmt.Errorf("failed to read response from %s: %w", ref, err))
	}

	if bar != nil && !bar.Completed() {
		bar.Abort(false)
	}

	return data, nil
}
