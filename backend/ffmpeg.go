package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Transcoder wraps ffmpeg for the conversions the bot needs.
type Transcoder struct {
	ffmpegPath string
	runner     CommandRunner
	logger     *slog.Logger
}

// NewTranscoder returns a transcoder for the configured ffmpeg binary.
func NewTranscoder(tools ToolsConfig, runner CommandRunner, logger *slog.Logger) *Transcoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = Logger
	}
	return &Transcoder{
		ffmpegPath: GetFFmpegPath(tools.FFmpegPath),
		runner:     runner,
		logger:     componentLogger(logger, "ffmpeg"),
	}
}

// GetFFmpegPath returns configured, then $PATH, then the bare name.
func GetFFmpegPath(configured string) string {
	return lookupBinary(configured, "ffmpeg")
}

// baseArgs are shared by every invocation: overwrite, never read stdin, quiet.
func baseArgs() []string {
	return []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error"}
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	t.logger.Debug("running ffmpeg", slog.String("args", strings.Join(args, " ")))
	stderr, err := t.runner.Run(ctx, t.ffmpegPath, args)
	if err != nil {
		return &TranscodeError{Args: args, Stderr: stderr, Err: err}
	}
	return nil
}

// ToMP3 converts raw to a tagged MP3 inside arena. The raw file is released
// on success.
func (t *Transcoder) ToMP3(ctx context.Context, raw *MediaArtifact, meta TitleMeta, cover string, arena *Arena) (*MediaArtifact, error) {
	output := arena.Path(SanitizeFileName(meta.String()) + ".mp3")
	if output == raw.Path {
		output = arena.Path(SanitizeFileName(meta.String()) + "-converted.mp3")
	}

	hasCover := cover != "" && fileExists(cover)

	args := append(baseArgs(), "-i", raw.Path)
	if hasCover {
		args = append(args, "-i", cover)
	}
	args = append(args, "-map", "0:a")
	if hasCover {
		args = append(args, "-map", "1:0")
	}
	args = append(args,
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-id3v2_version", "3",
	)
	if hasCover {
		args = append(args,
			"-c:v", "mjpeg",
			"-disposition:v", "attached_pic",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)",
		)
	}
	args = append(args, MetadataArgs(meta)...)
	args = append(args, output)

	arena.Track(output)
	if err := t.run(ctx, args); err != nil {
		return nil, err
	}
	return t.replace(raw, output, MediaAudio, meta, cover, arena)
}

// ToMP4 remuxes raw into an MP4 container with meta as tags. A raw .mp4
// with nothing to tag is returned as is.
func (t *Transcoder) ToMP4(ctx context.Context, raw *MediaArtifact, meta TitleMeta, arena *Arena) (*MediaArtifact, error) {
	tags := MetadataArgs(meta)
	stem := strings.TrimSuffix(filepath.Base(raw.Path), filepath.Ext(raw.Path))
	output := arena.Path(stem + ".mp4")

	if strings.EqualFold(filepath.Ext(raw.Path), ".mp4") {
		if len(tags) == 0 {
			out := *raw
			out.Title = meta
			return &out, nil
		}
		// ffmpeg cannot write over its input
		output = arena.Path(stem + ".tagged.mp4")
	}

	args := append(baseArgs(), "-i", raw.Path,
		"-map", "0",
		"-c", "copy",
		"-movflags", "+faststart",
	)
	args = append(args, tags...)
	args = append(args, output)

	arena.Track(output)
	if err := t.run(ctx, args); err != nil {
		return nil, err
	}
	return t.replace(raw, output, MediaVideo, meta, raw.Cover, arena)
}

// Placeholder renders image as a still video with silent audio.
func (t *Transcoder) Placeholder(ctx context.Context, image string, seconds int, output string) error {
	if seconds <= 0 {
		seconds = 5
	}
	duration := fmt.Sprintf("%d", seconds)

	args := append(baseArgs(),
		"-loop", "1", "-i", image,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", duration,
		"-c:v", "libx264", "-tune", "stillimage", "-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:a", "aac", "-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		output,
	)
	return t.run(ctx, args)
}

func (t *Transcoder) replace(raw *MediaArtifact, output string, kind MediaKind, meta TitleMeta, cover string, arena *Arena) (*MediaArtifact, error) {
	info, err := os.Stat(output)
	if err != nil {
		return nil, &TranscodeError{Err: fmt.Errorf("failed to verify output: %w", err)}
	}
	if info.Size() == 0 {
		return nil, &TranscodeError{Err: fmt.Errorf("ffmpeg produced an empty file: %s", output)}
	}
	arena.Release(raw.Path)

	return &MediaArtifact{
		Path:  output,
		Size:  info.Size(),
		Kind:  kind,
		Title: meta,
		Cover: cover,
	}, nil
}

// FormatFileSize renders bytes for log lines and chat messages.
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
