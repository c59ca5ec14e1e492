package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RequestHandler processes one request to completion.
type RequestHandler interface {
	Handle(ctx context.Context, req IncomingRequest) error
}

// Pipeline routes a chat request and carries it through acquisition and
// delivery. User-visible failures are reported in the chat and return nil;
// the returned error is reserved for infrastructure failures.
type Pipeline struct {
	sender      Sender
	media       *MediaService
	botUsername string
	logger      *slog.Logger
}

func NewPipeline(sender Sender, media *MediaService, botUsername string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = Logger
	}
	return &Pipeline{
		sender:      sender,
		media:       media,
		botUsername: botUsername,
		logger:      componentLogger(logger, "pipeline"),
	}
}

func (p *Pipeline) Handle(ctx context.Context, req IncomingRequest) error {
	cmd := Route(req, p.botUsername)
	log := p.logger.With(slog.Int64("request", req.RequestID), slog.Int64("chat", req.ChatID))
	log.Debug("routed", slog.String("command", cmd.Kind.String()))

	switch cmd.Kind {
	case CommandIgnore:
		return nil
	case CommandStart:
		_, err := p.sender.SendText(ctx, req.ChatID, req.MessageID, MsgStart)
		return err
	case CommandInvalid:
		_, err := p.sender.SendText(ctx, req.ChatID, req.MessageID, InvalidMessage(cmd.Reason))
		return err
	case CommandFetchVideo, CommandFetchAudio:
		return p.fetch(ctx, req, cmd, log)
	default:
		return fmt.Errorf("unhandled command kind %s", cmd.Kind)
	}
}

func (p *Pipeline) fetch(ctx context.Context, req IncomingRequest, cmd Command, log *slog.Logger) error {
	kind := cmd.MediaKind()

	workingID, err := p.sender.SendText(ctx, req.ChatID, req.MessageID, workingMessage(kind))
	if err != nil {
		log.Warn("failed to send progress message", slog.Any("error", err))
		workingID = 0
	}
	sendChatAction(ctx, p.sender, req.ChatID, ActionTyping, log)

	arena, err := p.media.Temp.NewArena(req.RequestID)
	if err != nil {
		p.report(ctx, req, workingID, MsgInternalError, log)
		return err
	}
	defer arena.Cleanup()

	artifact, job, err := p.media.Acquire(ctx, req.RequestID, cmd.URL, kind, arena)
	if err != nil {
		log.Warn("acquisition failed",
			slog.String("url", cmd.URL),
			slog.Int("attempts", len(job.Attempts)),
			slog.Any("error", err))
		p.report(ctx, req, workingID, UserMessage(err), log)
		return nil
	}

	err = p.media.Pool.Do(ctx, func(ctx context.Context) error {
		return Deliver(ctx, p.sender, req.ChatID, req.MessageID, artifact, log)
	})
	if errors.Is(err, ErrUploadTooLarge) {
		log.Warn("upload rejected as too large",
			slog.String("size", FormatFileSize(artifact.Size)),
			slog.Any("error", err))
		p.report(ctx, req, workingID, MsgTooLarge, log)
		return nil
	}
	if err != nil {
		p.report(ctx, req, workingID, MsgInternalError, log)
		return fmt.Errorf("deliver: %w", err)
	}

	if workingID != 0 {
		if err := p.sender.DeleteMessage(ctx, req.ChatID, workingID); err != nil {
			log.Debug("failed to delete progress message", slog.Any("error", err))
		}
	}
	log.Info("delivered", slog.String("kind", kind.String()), slog.String("strategy", lastStrategy(job)))
	return nil
}

// report turns the progress message into text, or sends text when there is
// no progress message.
func (p *Pipeline) report(ctx context.Context, req IncomingRequest, workingID int, text string, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if workingID != 0 {
		err = p.sender.EditText(ctx, req.ChatID, workingID, text)
	} else {
		_, err = p.sender.SendText(ctx, req.ChatID, req.MessageID, text)
	}
	if err != nil {
		log.Warn("failed to report error to user", slog.Any("error", err))
	}
}

func lastStrategy(job *AcquisitionJob) string {
	if job == nil || len(job.Attempts) == 0 {
		return ""
	}
	return job.Attempts[len(job.Attempts)-1].Strategy
}
