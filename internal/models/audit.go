package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditEscrowCreated   = "escrow_created"
	AuditEscrowConfirmed = "escrow_confirmed"
	AuditEscrowReleased  = "escrow_released"
	AuditEscrowCancelled = "escrow_cancelled"
)

type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	EscrowID   uuid.UUID `json:"escrow_id"`
	ActorEmail *string   `json:"actor_email,omitempty"`
	ActorType  string    `json:"actor_type"` // user/system/bot
	Action     string    `json:"action"`
	Meta       any       `json:"meta,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
