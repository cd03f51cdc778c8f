package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/splitpay/backend/internal/bot"
	"github.com/splitpay/backend/internal/http/dto"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	interpreter *bot.Interpreter
	log         *zap.Logger
}

func NewWebhookHandler(interpreter *bot.Interpreter, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{interpreter: interpreter, log: log}
}

// Telegram ingests one bot update. The endpoint always acks with 200
// so Telegram does not retry; replies travel through the bot API, not
// this response.
func (h *WebhookHandler) Telegram(c *fiber.Ctx) error {
	var upd bot.Update
	if err := c.BodyParser(&upd); err != nil {
		h.log.Warn("undecodable telegram update", zap.Error(err))
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	h.interpreter.HandleUpdate(c.Context(), upd)
	return c.JSON(dto.SuccessResponse{OK: true})
}
