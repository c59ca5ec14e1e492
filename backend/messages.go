package backend

import "errors"

// User-facing chat strings.
const (
	MsgStart = "Hi! Send me a link to a video and I'll send it back as MP4.\n" +
		"Use /mp3 <link> to get the audio as MP3, named after the video title.\n" +
		"In groups, use /video <link> or /mp3 <link>."
	MsgDownloadingVideo = "Downloading the video, please wait..."
	MsgDownloadingAudio = "Downloading the audio, please wait..."
	MsgMissingURL       = "Please put a link after the command, for example /mp3 https://youtu.be/..."
	MsgUnsupportedURL   = "Sorry, I can't download from that site."
	MsgTooLarge         = "This file is too large to send."
	MsgNotFound         = "That video doesn't exist or is unavailable."
	MsgRejected         = "The platform refused access to this video (private, age or region restricted)."
	MsgFetchFailed      = "Couldn't download this media. Check that the link is correct and the video is available."
	MsgConvertFailed    = "The download worked, but converting the file failed."
	MsgInternalError    = "Something went wrong on my side. Please try again later."
)

// InvalidMessage returns the reply for a CommandInvalid reason.
func InvalidMessage(reason string) string {
	if reason == ReasonUnsupportedURL {
		return MsgUnsupportedURL
	}
	return MsgMissingURL
}

// UserMessage maps a pipeline error to the one message the user sees.
func UserMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case SizeLimitExceeded:
			return MsgTooLarge
		case NotFound:
			return MsgNotFound
		case PlatformRejected:
			return MsgRejected
		default:
			return MsgFetchFailed
		}
	}
	var te *TranscodeError
	if errors.As(err, &te) {
		return MsgConvertFailed
	}
	if errors.Is(err, ErrUploadTooLarge) {
		return MsgTooLarge
	}
	return MsgInternalError
}

func workingMessage(kind MediaKind) string {
	if kind == MediaAudio {
		return MsgDownloadingAudio
	}
	return MsgDownloadingVideo
}
