package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/splitpay/backend/internal/models"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (escrow_id, actor_email, actor_type, action, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.EscrowID, entry.ActorEmail, entry.ActorType, entry.Action, entry.Meta)
	return err
}

func (r *AuditRepo) ListByEscrow(ctx context.Context, escrowID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, escrow_id, actor_email, actor_type, action, meta, created_at
		FROM audit_log WHERE escrow_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, escrowID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.EscrowID, &l.ActorEmail, &l.ActorType, &l.Action, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
