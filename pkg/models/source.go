package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/teslashibe/go-facecam/internal/log"
)

// ServedPrefix is the URL path the web server publishes model files under.
const ServedPrefix = "/models"

// Source resolves bundle file names to local paths.
type Source interface {
	Resolve(ctx context.Context, files []string) ([]string, error)
	String() string
}

// SourceConfig configures NewSource.
type SourceConfig struct {
	// URI is a directory, ServedPrefix, or an http(s) base URL.
	URI string

	// ServeDir backs ServedPrefix.
	ServeDir string

	// CacheDir receives downloads from an http(s) URI.
	CacheDir string

	// Client performs downloads. Required for http(s) URIs.
	Client *resty.Client

	// Progress receives download progress bars. Nil discards them.
	Progress io.Writer
}

// NewSource picks a source for cfg.URI.
func NewSource(cfg SourceConfig) (Source, error) {
	if cfg.URI == "" {
		return nil, errors.New("models: empty source uri")
	}
	if u, err := url.Parse(cfg.URI); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if cfg.Client == nil {
			return nil, errors.New("models: http source needs a client")
		}
		if cfg.CacheDir == "" {
			return nil, errors.New("models: http source needs a cache dir")
		}
		progress := cfg.Progress
		if progress == nil {
			progress = io.Discard
		}
		return &HTTPSource{
			base:     strings.TrimRight(cfg.URI, "/"),
			cacheDir: cfg.CacheDir,
			client:   cfg.Client,
			progress: progress,
		}, nil
	}
	if cfg.URI == ServedPrefix && cfg.ServeDir != "" {
		return DirSource(cfg.ServeDir), nil
	}
	return DirSource(cfg.URI), nil
}

// DirSource resolves files inside a local directory.
type DirSource string

// Resolve returns absolute paths, failing on the first missing file.
func (d DirSource) Resolve(ctx context.Context, files []string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(string(d), f)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingFile, p)
			}
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (d DirSource) String() string { return string(d) }

// HTTPSource downloads files into a cache directory. Cached files are reused.
type HTTPSource struct {
	base     string
	cacheDir string
	client   *resty.Client
	progress io.Writer
}

func (h *HTTPSource) String() string { return h.base }

// Resolve downloads any file not already cached.
func (h *HTTPSource) Resolve(ctx context.Context, files []string) ([]string, error) {
	if err := os.MkdirAll(h.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		target := filepath.Join(h.cacheDir, f)
		if info, err := os.Stat(target); err == nil && info.Size() > 0 {
			log.Debug("model cache hit", "file", f)
			paths = append(paths, target)
			continue
		}
		if err := h.download(ctx, h.base+"/"+f, target, f); err != nil {
			return nil, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

func (h *HTTPSource) download(ctx context.Context, src, target, name string) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(src)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return fmt.Errorf("fetch %s: %s", src, resp.Status())
	}

	tmp, err := os.CreateTemp(h.cacheDir, name+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	var size int64 = -1
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		size = resp.RawResponse.ContentLength
	}
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWriter(h.progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
	)

	n, err := io.Copy(io.MultiWriter(tmp, bar), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	_ = bar.Finish()

	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}
	log.Info("model downloaded", "file", name, "bytes", n)
	return nil
}
