package backend

import (
	"context"
	"errors"
	"net/http"
)

// StrategyFunc runs one acquisition method. base is an arena path without
// extension; outputs must start with it. The returned path may be empty when
// the method does not know the final extension.
type StrategyFunc func(ctx context.Context, job *AcquisitionJob, base string) (string, error)

// Strategy is one named rung of the fetch ladder.
type Strategy struct {
	Name string
	Run  StrategyFunc
}

// Strategy names, as they appear in attempts and logs.
const (
	StrategyLibraryMP4       = "goutubedl-mp4"
	StrategyBestMerge        = "ytdlp-best-merge"
	StrategyGeneric          = "ytdlp-generic"
	StrategyDirect           = "ytdlp-direct"
	StrategyPlaceholder      = "thumbnail-placeholder"
	StrategyLibraryBestAudio = "goutubedl-bestaudio"
	StrategyBestAudio        = "ytdlp-bestaudio"
	StrategyGenericAudio     = "ytdlp-generic-audio"
)

var errNoThumbnail = errors.New("no thumbnail available for placeholder")

// LadderDeps are the tools the built-in ladders use.
type LadderDeps struct {
	Extractor          *Extractor
	Transcoder         *Transcoder
	HTTPClient         *http.Client
	PlaceholderSeconds int
}

// VideoLadder returns the video strategies, most faithful first.
func VideoLadder(d LadderDeps) []Strategy {
	return []Strategy{
		{Name: StrategyLibraryMP4, Run: d.libraryDownload(StrategyLibraryMP4, "mp4/best", ".mp4")},
		{Name: StrategyBestMerge, Run: d.ytDlp(StrategyBestMerge, YtDlpOptions{
			Format:      "bestvideo*+bestaudio/best",
			MergeFormat: "mp4",
		}, true)},
		{Name: StrategyGeneric, Run: d.ytDlp(StrategyGeneric, YtDlpOptions{
			Format:       "best",
			ForceGeneric: true,
		}, true)},
		{Name: StrategyDirect, Run: d.ytDlp(StrategyDirect, YtDlpOptions{
			Format: "best",
		}, false)},
		{Name: StrategyPlaceholder, Run: d.placeholder},
	}
}

// AudioLadder returns the audio strategies.
func AudioLadder(d LadderDeps) []Strategy {
	return []Strategy{
		{Name: StrategyLibraryBestAudio, Run: d.libraryDownload(StrategyLibraryBestAudio, "bestaudio/best", ".audio")},
		{Name: StrategyBestAudio, Run: d.ytDlp(StrategyBestAudio, YtDlpOptions{
			Format: "bestaudio/best",
		}, true)},
		{Name: StrategyGenericAudio, Run: d.ytDlp(StrategyGenericAudio, YtDlpOptions{
			Format:       "bestaudio/best",
			ForceGeneric: true,
		}, true)},
	}
}

func (d LadderDeps) libraryDownload(name, filter, ext string) StrategyFunc {
	return func(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
		dest := base + ext
		if err := d.Extractor.LibraryDownload(ctx, job.URL, job.Cookies, filter, dest); err != nil {
			return "", &ExtractorError{Strategy: name, Err: err}
		}
		return dest, nil
	}
}

func (d LadderDeps) ytDlp(name string, opts YtDlpOptions, withCookies bool) StrategyFunc {
	return func(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
		run := opts
		run.OutputTemplate = base + ".%(ext)s"
		if withCookies {
			run.Cookies = job.Cookies
		}
		if err := d.Extractor.RunYtDlp(ctx, name, job.URL, run); err != nil {
			return "", err
		}
		return "", nil
	}
}

func (d LadderDeps) placeholder(ctx context.Context, job *AcquisitionJob, base string) (string, error) {
	if job.Probe == nil || job.Probe.Thumbnail == "" {
		return "", errNoThumbnail
	}
	image := base + ".jpg"
	if _, err := DownloadToFile(ctx, d.HTTPClient, job.Probe.Thumbnail, image); err != nil {
		return "", err
	}
	output := base + ".mp4"
	if err := d.Transcoder.Placeholder(ctx, image, d.PlaceholderSeconds, output); err != nil {
		return "", err
	}
	return output, nil
}
