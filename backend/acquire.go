package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Fetcher acquires the raw media of a job.
type Fetcher interface {
	Fetch(ctx context.Context, job *AcquisitionJob, arena *Arena) (*MediaArtifact, error)
}

// Converter turns a raw artifact into the deliverable format.
type Converter interface {
	ToMP3(ctx context.Context, raw *MediaArtifact, meta TitleMeta, cover string, arena *Arena) (*MediaArtifact, error)
	ToMP4(ctx context.Context, raw *MediaArtifact, meta TitleMeta, arena *Arena) (*MediaArtifact, error)
}

// MediaService runs fetch and conversion for one URL. It is shared by the
// chat pipeline and the local fetch command.
type MediaService struct {
	Cookies    *CookieSelector
	Temp       *TempManager
	Pool       *WorkerPool
	Fetcher    Fetcher
	Converter  Converter
	HTTPClient *http.Client // thumbnails, honours the proxy
	Logger     *slog.Logger
}

// NewMediaService wires the production components from cfg. Close releases
// the worker pool.
func NewMediaService(cfg Config, logger *slog.Logger) (*MediaService, error) {
	if logger == nil {
		logger = Logger
	}

	cookies, err := NewCookieSelector(cfg.Cookies, logger)
	if err != nil {
		return nil, err
	}
	client, err := NewHTTPClient(cfg.Fetch.ThumbnailTimeout.Duration, cfg.Fetch.ProxyURL)
	if err != nil {
		return nil, err
	}

	pool := NewWorkerPool(cfg.Fetch.BlockingWorkers, logger)
	extractor := NewExtractor(cfg.Tools, cfg.Fetch.ProxyURL, nil, logger)
	transcoder := NewTranscoder(cfg.Tools, nil, logger)
	deps := LadderDeps{
		Extractor:          extractor,
		Transcoder:         transcoder,
		HTTPClient:         client,
		PlaceholderSeconds: cfg.Fetch.PlaceholderSeconds,
	}

	return &MediaService{
		Cookies:    cookies,
		Temp:       NewTempManager(cfg.Fetch.WorkDir, logger),
		Pool:       pool,
		Fetcher:    NewFetchEngine(extractor, VideoLadder(deps), AudioLadder(deps), pool, cfg.Fetch.MaxFileSize, logger),
		Converter:  transcoder,
		HTTPClient: client,
		Logger:     componentLogger(logger, "media"),
	}, nil
}

// Close stops the worker pool.
func (m *MediaService) Close() {
	if m.Pool != nil {
		m.Pool.Close()
	}
}

// Acquire fetches rawURL into arena and converts it for delivery.
func (m *MediaService) Acquire(ctx context.Context, requestID int64, rawURL string, kind MediaKind, arena *Arena) (*MediaArtifact, *AcquisitionJob, error) {
	job := &AcquisitionJob{
		ID:        arena.ID(),
		RequestID: requestID,
		URL:       rawURL,
		Kind:      kind,
	}
	if m.Cookies != nil {
		job.Cookies = m.Cookies.Select(rawURL)
	}
	log := m.Logger.With(slog.String("job", job.ID), slog.String("url", rawURL))
	log.Info("acquiring", slog.String("kind", kind.String()), slog.String("cookies", job.Cookies.Platform))

	raw, err := m.Fetcher.Fetch(ctx, job, arena)
	if err != nil {
		return nil, job, err
	}

	var out *MediaArtifact
	switch kind {
	case MediaAudio:
		cover := m.fetchCover(ctx, job, arena, log)
		err = m.Pool.Do(ctx, func(ctx context.Context) error {
			var convErr error
			out, convErr = m.Converter.ToMP3(ctx, raw, raw.Title, cover, arena)
			return convErr
		})
	default:
		err = m.Pool.Do(ctx, func(ctx context.Context) error {
			var convErr error
			out, convErr = m.Converter.ToMP4(ctx, raw, raw.Title, arena)
			return convErr
		})
	}
	if err != nil {
		return nil, job, fmt.Errorf("convert %s: %w", kind, err)
	}
	arena.Track(out.Path)
	log.Info("acquired", slog.String("path", out.Path), slog.String("size", FormatFileSize(out.Size)))
	return out, job, nil
}

// fetchCover downloads the probe thumbnail. Failure only costs the cover.
func (m *MediaService) fetchCover(ctx context.Context, job *AcquisitionJob, arena *Arena, log *slog.Logger) string {
	if job.Probe == nil || job.Probe.Thumbnail == "" || m.HTTPClient == nil {
		return ""
	}
	dest := arena.Path("cover.jpg")
	err := m.Pool.Do(ctx, func(ctx context.Context) error {
		_, err := DownloadToFile(ctx, m.HTTPClient, job.Probe.Thumbnail, dest)
		return err
	})
	if err != nil {
		log.Warn("cover download failed", slog.Any("error", err))
		return ""
	}
	arena.Track(dest)
	return dest
}
