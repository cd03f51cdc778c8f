package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/splitpay/backend/internal/http/dto"
	"github.com/splitpay/backend/internal/models"
)

// MetaHandler exposes the supported enums so clients can build pickers
// without hardcoding them.
type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

func (h *MetaHandler) GetCurrencies(c *fiber.Ctx) error {
	return c.JSON(dto.ItemsResponse{Items: models.Currencies})
}

func (h *MetaHandler) GetChains(c *fiber.Ctx) error {
	return c.JSON(dto.ItemsResponse{Items: models.Chains})
}
