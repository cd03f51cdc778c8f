package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/splitpay/backend/internal/models"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// LinkEmail binds an email to a chat, creating the profile row on first
// contact. A later /link overwrites the previous binding.
func (r *ProfileRepo) LinkEmail(ctx context.Context, chatID int64, username *string, email string) (*models.ChatProfile, error) {
	var p models.ChatProfile
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat_profiles (chat_id, username, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, chat_profiles.username),
			email = EXCLUDED.email,
			updated_at = now()
		RETURNING chat_id, username, email, wallet, created_at, updated_at
	`, chatID, username, email).Scan(
		&p.ChatID, &p.Username, &p.Email, &p.Wallet, &p.CreatedAt, &p.UpdatedAt,
	)
	return &p, err
}

func (r *ProfileRepo) GetByChatID(ctx context.Context, chatID int64) (*models.ChatProfile, error) {
	var p models.ChatProfile
	err := r.pool.QueryRow(ctx, `
		SELECT chat_id, username, email, wallet, created_at, updated_at
		FROM chat_profiles WHERE chat_id = $1
	`, chatID).Scan(&p.ChatID, &p.Username, &p.Email, &p.Wallet, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByEmail finds every chat linked to an email. The notify bridge
// uses it to fan escrow events out to the parties.
func (r *ProfileRepo) ListByEmail(ctx context.Context, email string) ([]models.ChatProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id, username, email, wallet, created_at, updated_at
		FROM chat_profiles WHERE email = $1
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.ChatProfile
	for rows.Next() {
		var p models.ChatProfile
		if err := rows.Scan(&p.ChatID, &p.Username, &p.Email, &p.Wallet, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
