package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers replies through the Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegramSender connects to the Bot API with token. endpoint and client
// may be empty/nil to use the public API.
func NewTelegramSender(token, endpoint string, client *http.Client, logger *slog.Logger) (*TelegramSender, error) {
	if logger == nil {
		logger = Logger
	}
	logger = componentLogger(logger, "telegram")
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})

	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized", slog.String("username", bot.Self.UserName))
	return &TelegramSender{bot: bot, logger: logger}, nil
}

// Username returns the bot's own username.
func (s *TelegramSender) Username() string {
	return s.bot.Self.UserName
}

// SetWebhook registers link as the update endpoint.
func (s *TelegramSender) SetWebhook(link string) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if _, err := s.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	s.logger.Info("webhook registered", slog.String("url", link))
	return nil
}

func (s *TelegramSender) SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := s.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

func (s *TelegramSender) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := s.bot.Send(edit); err != nil {
		if isMessageNotModified(err) {
			return nil
		}
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (s *TelegramSender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *TelegramSender) SendVideo(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(artifact.Path))
	video.ReplyToMessageID = replyTo
	video.SupportsStreaming = true
	video.Caption = artifact.Title.String()
	if _, err := s.bot.Send(video); err != nil {
		return fmt.Errorf("send video: %w", uploadError(err))
	}
	return nil
}

func (s *TelegramSender) SendAudio(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(artifact.Path))
	audio.ReplyToMessageID = replyTo
	audio.Title = artifact.Title.Track
	audio.Performer = artifact.Title.Artist
	if artifact.Cover != "" && fileExists(artifact.Cover) {
		audio.Thumb = tgbotapi.FilePath(artifact.Cover)
	}
	if _, err := s.bot.Send(audio); err != nil {
		return fmt.Errorf("send audio: %w", uploadError(err))
	}
	return nil
}

func (s *TelegramSender) SendChatAction(ctx context.Context, chatID int64, action ChatAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Request(tgbotapi.NewChatAction(chatID, string(action))); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// uploadError maps the Bot API's 413 reply onto ErrUploadTooLarge. Upload
// errors from the library carry no code, only the description.
func uploadError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "entity too large") {
		return fmt.Errorf("%w: %v", ErrUploadTooLarge, err)
	}
	return err
}

func isMessageNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// slogBotLogger routes the library's log output into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
