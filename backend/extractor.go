package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/wader/goutubedl"
)

// CommandRunner runs an external binary and returns its stderr.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) (stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return stderr.String(), err
}

// Prober gathers metadata about a media URL without downloading it.
type Prober interface {
	Probe(ctx context.Context, rawURL string, cookies CookieProfile) (*ProbeResult, error)
}

// Extractor wraps yt-dlp, both through goutubedl and as a CLI.
type Extractor struct {
	ytDlpPath string
	proxyURL  string
	runner    CommandRunner
	logger    *slog.Logger
}

// NewExtractor returns an extractor for the configured yt-dlp binary.
func NewExtractor(tools ToolsConfig, proxyURL string, runner CommandRunner, logger *slog.Logger) *Extractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = Logger
	}
	path := GetYtDlpPath(tools.YtDlpPath)
	goutubedl.Path = path
	return &Extractor{
		ytDlpPath: path,
		proxyURL:  proxyURL,
		runner:    runner,
		logger:    componentLogger(logger, "extractor"),
	}
}

// GetYtDlpPath returns configured, then $PATH, then the bare name.
func GetYtDlpPath(configured string) string {
	return lookupBinary(configured, "yt-dlp")
}

func lookupBinary(configured, name string) string {
	if configured != "" {
		return configured
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// Probe runs a metadata-only yt-dlp invocation through goutubedl.
func (x *Extractor) Probe(ctx context.Context, rawURL string, cookies CookieProfile) (*ProbeResult, error) {
	result, err := goutubedl.New(ctx, rawURL, x.options(cookies))
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	probe := &ProbeResult{
		ID:            result.Info.ID,
		Title:         result.Info.Title,
		Uploader:      result.Info.Uploader,
		Thumbnail:     result.Info.Thumbnail,
		Duration:      result.Info.Duration,
		EstimatedSize: EstimateSize(result.RawJSON),
	}
	x.logger.Debug("probed",
		slog.String("url", rawURL),
		slog.String("title", probe.Title),
		slog.Int64("estimated_size", probe.EstimatedSize))
	return probe, nil
}

// options returns the goutubedl options shared by the probe and the
// library rungs.
func (x *Extractor) options(cookies CookieProfile) goutubedl.Options {
	opts := goutubedl.Options{
		Type:     goutubedl.TypeSingle,
		ProxyUrl: x.proxyURL,
	}
	if cookies.HasCookies() {
		opts.Cookies = cookies.FilePath
	}
	return opts
}

type sizeFields struct {
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// EstimateSize reads the expected download size from yt-dlp info JSON:
// filesize, then filesize_approx, then the sum over requested_formats.
// It returns 0 when nothing is known.
func EstimateSize(raw []byte) int64 {
	if len(raw) == 0 {
		return 0
	}
	var info struct {
		sizeFields
		RequestedFormats []sizeFields `json:"requested_formats"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return 0
	}
	if info.Filesize > 0 {
		return int64(info.Filesize)
	}
	if info.FilesizeApprox > 0 {
		return int64(info.FilesizeApprox)
	}
	var total float64
	for _, f := range info.RequestedFormats {
		if f.Filesize > 0 {
			total += f.Filesize
		} else {
			total += f.FilesizeApprox
		}
	}
	return int64(total)
}

// LibraryDownload downloads rawURL with goutubedl into dest.
func (x *Extractor) LibraryDownload(ctx context.Context, rawURL string, cookies CookieProfile, filter, dest string) error {
	result, err := goutubedl.New(ctx, rawURL, x.options(cookies))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	downloadReader, err := result.Download(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer downloadReader.Close()

	outFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, downloadReader); err != nil {
		outFile.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write download: %w", err)
	}
	return outFile.Close()
}

// YtDlpOptions are the knobs the CLI strategies vary.
type YtDlpOptions struct {
	Format         string
	MergeFormat    string // --merge-output-format
	Cookies        CookieProfile
	ForceGeneric   bool
	OutputTemplate string
}

// BuildYtDlpArgs assembles a yt-dlp command line for rawURL.
func (x *Extractor) BuildYtDlpArgs(rawURL string, opts YtDlpOptions) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-part",
		"-f", opts.Format,
		"-o", opts.OutputTemplate,
	}
	if opts.MergeFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeFormat)
	}
	if opts.ForceGeneric {
		args = append(args, "--force-generic-extractor")
	}
	if opts.Cookies.HasCookies() {
		args = append(args, "--cookies", opts.Cookies.FilePath)
	}
	if x.proxyURL != "" {
		args = append(args, "--proxy", x.proxyURL)
	}
	return append(args, rawURL)
}

// RunYtDlp runs the yt-dlp CLI. Failures are returned as *ExtractorError.
func (x *Extractor) RunYtDlp(ctx context.Context, strategy, rawURL string, opts YtDlpOptions) error {
	args := x.BuildYtDlpArgs(rawURL, opts)
	x.logger.Debug("running yt-dlp", slog.String("strategy", strategy), slog.String("args", strings.Join(args, " ")))

	stderr, err := x.runner.Run(ctx, x.ytDlpPath, args)
	if err != nil {
		return &ExtractorError{Strategy: strategy, Args: args, Stderr: stderr, Err: err}
	}
	return nil
}
