package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/splitpay/backend/internal/http/dto"
)

type HealthHandler struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pool: pool, rdb: rdb}
}

func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(dto.MessageResponse{Message: "SplitPay backend is running"})
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	pg, rd := "ok", "ok"
	if err := h.pool.Ping(c.Context()); err != nil {
		pg = "down"
	}
	if err := h.rdb.Ping(c.Context()).Err(); err != nil {
		rd = "down"
	}

	status := "ok"
	code := fiber.StatusOK
	if pg != "ok" || rd != "ok" {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{Status: status, Postgres: pg, Redis: rd})
}
