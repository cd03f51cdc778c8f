package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/splitpay/backend/internal/http/dto"
	"github.com/splitpay/backend/internal/identity"
	"github.com/splitpay/backend/internal/repositories"
	"github.com/splitpay/backend/internal/services"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrows *services.EscrowService
	log     *zap.Logger
}

func NewEscrowHandler(escrows *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrows: escrows, log: log}
}

func (h *EscrowHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	recipients := make([]services.RecipientInput, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, services.RecipientInput{
			Email:      r.Email,
			Percentage: r.Percentage,
			Wallet:     r.Wallet,
		})
	}

	e, err := h.escrows.Create(c.Context(), services.CreateEscrowInput{
		Title:       req.Title,
		Description: req.Description,
		PayerEmail:  req.PayerEmail,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Chain:       req.Chain,
		Recipients:  recipients,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CreateEscrowResponse{ID: e.ID.String(), Message: "Escrow created"})
}

func (h *EscrowHandler) CreateP2P(c *fiber.Ctx) error {
	var req dto.CreateP2PRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	e, err := h.escrows.CreateP2P(c.Context(), services.CreateP2PInput{
		PayerEmail:     req.PayerEmail,
		RecipientEmail: req.RecipientEmail,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Chain:          req.Chain,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CreateEscrowResponse{ID: e.ID.String(), Message: "Escrow created"})
}

func (h *EscrowHandler) Get(c *fiber.Ctx) error {
	e, err := h.escrows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(e)
}

func (h *EscrowHandler) List(c *fiber.Ctx) error {
	var filter repositories.EscrowFilter
	if v := c.Query("email"); v != "" {
		filter.Email = &v
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	items, err := h.escrows.List(c.Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.ItemsResponse{Items: items})
}

func (h *EscrowHandler) Confirm(c *fiber.Ctx) error {
	var req dto.ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	status, err := h.escrows.Confirm(c.Context(), c.Params("id"), identity.FromEmail(req.Actor))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.StatusResponse{Message: "Confirmation recorded", Status: status})
}

func (h *EscrowHandler) Release(c *fiber.Ctx) error {
	res, err := h.escrows.Release(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	payouts := make([]dto.PayoutItem, 0, len(res.Payouts))
	for _, p := range res.Payouts {
		payouts = append(payouts, dto.PayoutItem{
			Email:  p.Email,
			Wallet: p.Wallet,
			Amount: p.Amount,
		})
	}
	return c.JSON(dto.ReleaseResponse{
		Message: "Funds released (simulated)",
		Status:  res.Escrow.Status,
		Payouts: payouts,
	})
}

func (h *EscrowHandler) Cancel(c *fiber.Ctx) error {
	var req dto.CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	status, err := h.escrows.Cancel(c.Context(), c.Params("id"), identity.FromEmail(req.Actor))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.StatusResponse{Message: "Escrow cancelled", Status: status})
}

func (h *EscrowHandler) Events(c *fiber.Ctx) error {
	items, err := h.escrows.Events(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.ItemsResponse{Items: items})
}

// fail maps engine errors onto status codes: the four caller-visible
// conditions and validation messages go out verbatim, storage trouble
// is hidden behind a 503.
func (h *EscrowHandler) fail(c *fiber.Ctx, err error) error {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, services.ErrNotParty),
		errors.Is(err, services.ErrNotReleasable),
		errors.Is(err, services.ErrNotCancellable):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	h.log.Error("escrow request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "service unavailable"})
}
