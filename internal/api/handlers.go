package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"

	"mediabot/backend"
)

const AppVersion = "1.0.0"

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString("I'm alive!")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "starting"
	inflight := 0
	if d := s.svc.Dispatcher(); d != nil {
		status = "running"
		inflight = d.InFlight()
	}
	return c.JSON(fiber.Map{
		"status":     "ok",
		"version":    AppVersion,
		"dispatcher": status,
		"inflight":   inflight,
	})
}

// handleWebhook accepts one update and answers once the request has been
// processed or the acknowledgement timeout passes.
//
//	400 malformed body
//	503 dispatcher not running
//	200 processed, duplicate, or nothing to do
//	504 still processing after the acknowledgement timeout
//	500 submission or infrastructure failure
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	log := s.svc.Logger

	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid update body"})
	}

	req, ok := requestFromUpdate(update)
	if !ok {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	dispatcher := s.svc.Dispatcher()
	if dispatcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": backend.ErrDispatcherStarting.Error()})
	}

	if s.svc.Dedup.CheckAndAdd(req.RequestID) {
		log.Debug("duplicate update suppressed", slog.Int64("request", req.RequestID))
		return c.JSON(fiber.Map{"status": "duplicate"})
	}

	handle, err := dispatcher.Submit(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, backend.ErrDispatcherStopped) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error("submit failed", slog.Int64("request", req.RequestID), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "submit failed"})
	}

	err = handle.Wait(s.svc.Config.Server.AckTimeout.Duration)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "ok"})
	case errors.Is(err, backend.ErrAckTimeout):
		log.Warn("acknowledgement timed out, request continues", slog.Int64("request", req.RequestID))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
	}
}

// requestFromUpdate extracts the text message of update. ok is false for
// updates the bot has nothing to do with.
func requestFromUpdate(update tgbotapi.Update) (backend.IncomingRequest, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return backend.IncomingRequest{}, false
	}
	return backend.IncomingRequest{
		RequestID:  int64(update.UpdateID),
		ChatID:     msg.Chat.ID,
		ChatType:   msg.Chat.Type,
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		ReceivedAt: time.Now(),
	}, true
}
