package backend

import (
	"fmt"
	"time"
)

// MediaKind selects what a job produces.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return fmt.Sprintf("MediaKind(%d)", int(k))
	}
}

// IncomingRequest is one inbound chat update, as built by the webhook gateway.
type IncomingRequest struct {
	RequestID  int64 // Telegram update_id
	ChatID     int64
	ChatType   string
	MessageID  int
	Text       string
	ReceivedAt time.Time
}

// IsPrivate reports a one-to-one chat with the bot.
func (r IncomingRequest) IsPrivate() bool {
	return r.ChatType == "private"
}

// CommandKind is the routing decision for a request.
type CommandKind int

const (
	CommandIgnore CommandKind = iota
	CommandStart
	CommandFetchVideo
	CommandFetchAudio
	CommandInvalid
)

func (k CommandKind) String() string {
	switch k {
	case CommandIgnore:
		return "ignore"
	case CommandStart:
		return "start"
	case CommandFetchVideo:
		return "fetch-video"
	case CommandFetchAudio:
		return "fetch-audio"
	case CommandInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is the routed form of an IncomingRequest. Reason is set for
// CommandInvalid.
type Command struct {
	Kind   CommandKind
	URL    string
	Reason string
}

// MediaKind returns the kind of media a fetch command asks for.
func (c Command) MediaKind() MediaKind {
	if c.Kind == CommandFetchAudio {
		return MediaAudio
	}
	return MediaVideo
}

// Attempt records one rung of the fetch ladder.
type Attempt struct {
	Strategy string
	Outcome  string
	Err      error
}

// Attempt outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeRetryable     = "retryable"
	OutcomeFatal         = "fatal"
	OutcomeMissingOutput = "missing-output"
)

// ProbeResult is the metadata gathered before any download.
type ProbeResult struct {
	ID            string
	Title         string
	Uploader      string
	Thumbnail     string
	Duration      float64
	EstimatedSize int64 // 0 when unknown
}

// AcquisitionJob is the work unit for one fetch. Only the fetch engine
// mutates Attempts and Probe.
type AcquisitionJob struct {
	ID        string
	RequestID int64
	URL       string
	Kind      MediaKind
	Cookies   CookieProfile
	Attempts  []Attempt
	Probe     *ProbeResult
}

// Title returns the best known title for the job.
func (j *AcquisitionJob) Title() string {
	if j.Probe != nil && j.Probe.Title != "" {
		return j.Probe.Title
	}
	return ""
}

// MediaArtifact is a media file on disk produced by one stage and consumed by
// the next.
type MediaArtifact struct {
	Path  string
	Size  int64
	Kind  MediaKind
	Title TitleMeta
	Cover string // thumbnail image path, optional
}
