package backend

import (
	"context"
	"log/slog"
)

// ChatAction is a transient status shown in the chat.
type ChatAction string

const (
	ActionUploadVideo ChatAction = "upload_video"
	ActionUploadAudio ChatAction = "upload_document"
	ActionTyping      ChatAction = "typing"
)

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) (messageID int, err error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendVideo(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error
	SendAudio(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error
	SendChatAction(ctx context.Context, chatID int64, action ChatAction) error
}

// Deliver sends artifact as a video or audio message. A failed chat action
// is logged to log and does not stop the upload.
func Deliver(ctx context.Context, s Sender, chatID int64, replyTo int, artifact *MediaArtifact, log *slog.Logger) error {
	if artifact.Kind == MediaAudio {
		sendChatAction(ctx, s, chatID, ActionUploadAudio, log)
		return s.SendAudio(ctx, chatID, replyTo, artifact)
	}
	sendChatAction(ctx, s, chatID, ActionUploadVideo, log)
	return s.SendVideo(ctx, chatID, replyTo, artifact)
}

func sendChatAction(ctx context.Context, s Sender, chatID int64, action ChatAction, log *slog.Logger) {
	if err := s.SendChatAction(ctx, chatID, action); err != nil {
		if log == nil {
			log = Logger
		}
		log.Debug("failed to send chat action",
			slog.String("action", string(action)),
			slog.Any("error", err))
	}
}
