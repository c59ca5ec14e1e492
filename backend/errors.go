package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrAckTimeout         = errors.New("acknowledgement timed out")
	ErrDispatcherStopped  = errors.New("dispatcher stopped")
	ErrDispatcherStarting = errors.New("dispatcher not started")
	ErrMissingOutput      = errors.New("strategy finished without an output file")
	ErrUploadTooLarge     = errors.New("file exceeds the chat upload limit")
)

// FailureKind classifies a fetch failure.
type FailureKind int

const (
	Retryable FailureKind = iota
	SizeLimitExceeded
	PlatformRejected
	NotFound
	FatalExtractorError
)

func (k FailureKind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case SizeLimitExceeded:
		return "size-limit-exceeded"
	case PlatformRejected:
		return "platform-rejected"
	case NotFound:
		return "not-found"
	case FatalExtractorError:
		return "fatal-extractor-error"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// FetchError is the terminal error of the fetch engine.
type FetchError struct {
	Kind     FailureKind
	Attempts []Attempt
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch failed (%s) after %d attempt(s)", e.Kind, len(e.Attempts))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractorError is a failed yt-dlp run.
type ExtractorError struct {
	Strategy string
	Args     []string
	Stderr   string
	Err      error
}

func (e *ExtractorError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Strategy, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + lastLines(e.Stderr, 5)
	}
	return msg
}

func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// TranscodeError is a failed ffmpeg run.
type TranscodeError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed: %v", e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + lastLines(e.Stderr, 5)
	}
	return msg
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

type failurePattern struct {
	kind     FailureKind
	patterns []string
}

// Matched case-insensitively, in order.
var fatalPatterns = []failurePattern{
	{NotFound, []string{"video unavailable", "http error 404", "does not exist", "has been removed"}},
	{PlatformRejected, []string{
		"private video", "video is private", "sign in to confirm", "blocked",
		"geo restricted", "geo-restricted", "not available in your country",
		"age-restricted", "age restricted", "confirm your age", "inappropriate for some users",
	}},
	{FatalExtractorError, []string{"unsupported url", "is not a valid url", "incomplete youtube id"}},
}

var retryablePatterns = []string{
	"requested format is not available",
	"nsig extraction failed",
	"signature extraction failed",
	"unable to extract",
	"http error 403",
	"timed out",
	"timeout",
	"connection reset",
}

var serverErrorPattern = regexp.MustCompile(`(?i)http error 5\d\d`)

// ClassifyError decides whether the next ladder rung may still succeed after
// err. Errors that match no known pattern are retryable.
func ClassifyError(err error) (retryable bool, kind FailureKind) {
	if err == nil {
		return false, Retryable
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return false, fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return false, FatalExtractorError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrMissingOutput) {
		return true, Retryable
	}

	text := strings.ToLower(err.Error())
	for _, fp := range fatalPatterns {
		for _, p := range fp.patterns {
			if strings.Contains(text, p) {
				return false, fp.kind
			}
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(text, p) {
			return true, Retryable
		}
	}
	if serverErrorPattern.MatchString(text) {
		return true, Retryable
	}
	return true, Retryable
}
