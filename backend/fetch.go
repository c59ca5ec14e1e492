package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var mediaExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".webm": true, ".mov": true,
	".flv": true, ".3gp": true, ".avi": true, ".ts": true,
	".m4a": true, ".mp3": true, ".opus": true, ".ogg": true, ".oga": true,
	".aac": true, ".flac": true, ".wav": true, ".audio": true,
}

// FetchEngine probes a URL and walks a strategy ladder until one rung leaves
// a media file in the job's arena.
type FetchEngine struct {
	prober      Prober
	video       []Strategy
	audio       []Strategy
	pool        *WorkerPool
	maxFileSize int64
	logger      *slog.Logger
}

func NewFetchEngine(prober Prober, video, audio []Strategy, pool *WorkerPool, maxFileSize int64, logger *slog.Logger) *FetchEngine {
	if logger == nil {
		logger = Logger
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &FetchEngine{
		prober:      prober,
		video:       video,
		audio:       audio,
		pool:        pool,
		maxFileSize: maxFileSize,
		logger:      componentLogger(logger, "fetch"),
	}
}

func (e *FetchEngine) ladder(kind MediaKind) []Strategy {
	if kind == MediaAudio {
		return e.audio
	}
	return e.video
}

// Fetch acquires job.URL into arena. Terminal failures are *FetchError.
func (e *FetchEngine) Fetch(ctx context.Context, job *AcquisitionJob, arena *Arena) (*MediaArtifact, error) {
	log := e.logger.With(slog.String("job", job.ID), slog.String("kind", job.Kind.String()))

	if err := e.probe(ctx, job, log); err != nil {
		return nil, err
	}

	var lastErr error
	for _, s := range e.ladder(job.Kind) {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Kind: FatalExtractorError, Attempts: job.Attempts, Err: err}
		}

		base := arena.Path(s.Name)
		var path string
		err := e.pool.Do(ctx, func(ctx context.Context) error {
			var runErr error
			path, runErr = s.Run(ctx, job, base)
			return runErr
		})

		if err == nil {
			artifact, found := e.verify(path, base, job.Kind)
			if found {
				arena.Track(artifact.Path)
				job.Attempts = append(job.Attempts, Attempt{Strategy: s.Name, Outcome: OutcomeSuccess})
				log.Info("fetched", slog.String("strategy", s.Name), slog.Int64("size", artifact.Size))
				return e.finish(job, artifact, arena)
			}
			err = ErrMissingOutput
			job.Attempts = append(job.Attempts, Attempt{Strategy: s.Name, Outcome: OutcomeMissingOutput, Err: err})
			log.Warn("strategy left no output", slog.String("strategy", s.Name))
			lastErr = err
			continue
		}

		e.discard(base, arena)
		retryable, kind := ClassifyError(err)
		if !retryable {
			job.Attempts = append(job.Attempts, Attempt{Strategy: s.Name, Outcome: OutcomeFatal, Err: err})
			log.Warn("strategy failed fatally", slog.String("strategy", s.Name), slog.String("kind", kind.String()), slog.Any("error", err))
			return nil, &FetchError{Kind: kind, Attempts: job.Attempts, Err: err}
		}
		job.Attempts = append(job.Attempts, Attempt{Strategy: s.Name, Outcome: OutcomeRetryable, Err: err})
		log.Info("strategy failed, trying next", slog.String("strategy", s.Name), slog.Any("error", err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no strategies configured for %s", job.Kind)
	}
	return nil, &FetchError{Kind: FatalExtractorError, Attempts: job.Attempts, Err: lastErr}
}

func (e *FetchEngine) probe(ctx context.Context, job *AcquisitionJob, log *slog.Logger) error {
	if e.prober == nil {
		return nil
	}

	var probe *ProbeResult
	err := e.pool.Do(ctx, func(ctx context.Context) error {
		var probeErr error
		probe, probeErr = e.prober.Probe(ctx, job.URL, job.Cookies)
		return probeErr
	})
	if err != nil {
		if retryable, kind := ClassifyError(err); !retryable {
			return &FetchError{Kind: kind, Attempts: job.Attempts, Err: err}
		}
		log.Warn("probe failed, continuing without an estimate", slog.Any("error", err))
		return nil
	}

	job.Probe = probe
	if probe.EstimatedSize > e.maxFileSize {
		return &FetchError{
			Kind:     SizeLimitExceeded,
			Attempts: job.Attempts,
			Err: fmt.Errorf("estimated size %s exceeds limit %s",
				FormatFileSize(probe.EstimatedSize), FormatFileSize(e.maxFileSize)),
		}
	}
	return nil
}

func (e *FetchEngine) finish(job *AcquisitionJob, artifact *MediaArtifact, arena *Arena) (*MediaArtifact, error) {
	if artifact.Size > e.maxFileSize {
		arena.Release(artifact.Path)
		return nil, &FetchError{
			Kind:     SizeLimitExceeded,
			Attempts: job.Attempts,
			Err: fmt.Errorf("downloaded size %s exceeds limit %s",
				FormatFileSize(artifact.Size), FormatFileSize(e.maxFileSize)),
		}
	}
	artifact.Title = ParseTitle(job.Title())
	return artifact, nil
}

// verify returns the artifact a successful rung produced: the reported path
// if it is a non-empty file, else the largest media file named base.*.
func (e *FetchEngine) verify(path, base string, kind MediaKind) (*MediaArtifact, bool) {
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
			return &MediaArtifact{Path: path, Size: info.Size(), Kind: kind}, true
		}
	}

	found := findMediaFile(filepath.Dir(base), filepath.Base(base))
	if found == "" {
		return nil, false
	}
	info, err := os.Stat(found)
	if err != nil {
		return nil, false
	}
	return &MediaArtifact{Path: found, Size: info.Size(), Kind: kind}, true
}

// findMediaFile returns the largest non-empty media file in dir whose name
// starts with prefix. Partial downloads are skipped.
func findMediaFile(dir, prefix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var best string
	var bestSize int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix+".") {
			continue
		}
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		if !mediaExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, name), info.Size()
		}
	}
	return best
}

// discard removes whatever a failed rung left behind.
func (e *FetchEngine) discard(base string, arena *Arena) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return
	}
	for _, m := range matches {
		arena.Release(m)
	}
}
