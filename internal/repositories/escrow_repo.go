package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/splitpay/backend/internal/models"
)

const escrowColumns = `id, title, description, payer_email, total_amount::text, currency, chain,
	       recipients, payer_confirmed, status, schema_version, created_at, updated_at`

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

// EscrowMutator is applied to a row held under FOR UPDATE. The returned
// bool says whether the mutated row should be persisted; an error aborts
// without writing.
type EscrowMutator func(e *models.Escrow) (bool, error)

type EscrowFilter struct {
	Email  *string // matches payer or any recipient
	Status *string
	Limit  int
	Offset int
}

func (r *EscrowRepo) Insert(ctx context.Context, e *models.Escrow) error {
	recipientsBytes, err := json.Marshal(e.Recipients)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrows (title, description, payer_email, total_amount, currency, chain, recipients, payer_confirmed, status, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, e.Title, e.Description, e.PayerEmail, e.TotalAmount.String(), e.Currency, e.Chain,
		recipientsBytes, e.PayerConfirmed, e.Status, e.SchemaVersion,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Mutate loads the escrow under an exclusive row lock, applies fn and
// persists the result when fn asks for it. The lock is released on every
// exit path; fn errors pass through unchanged.
func (r *EscrowRepo) Mutate(ctx context.Context, id uuid.UUID, fn EscrowMutator) (*models.Escrow, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	commit, err := fn(e)
	if err != nil {
		return nil, err
	}
	if !commit {
		return e, nil
	}

	recipientsBytes, err := json.Marshal(e.Recipients)
	if err != nil {
		return nil, err
	}
	err = tx.QueryRow(ctx, `
		UPDATE escrows SET recipients = $1, payer_confirmed = $2, status = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`, recipientsBytes, e.PayerConfirmed, e.Status, id).Scan(&e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EscrowRepo) List(ctx context.Context, f EscrowFilter) ([]models.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Email != nil {
		where = append(where, fmt.Sprintf(`(payer_email = $%d OR EXISTS (
			SELECT 1 FROM jsonb_array_elements(recipients) r WHERE r->>'email' = $%d))`, argIdx, argIdx))
		args = append(args, *f.Email)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	escrows := []models.Escrow{}
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

// ListStale returns escrows sitting in the given status whose last
// update is older than olderThanSeconds. Used by the auto-cancel worker.
func (r *EscrowRepo) ListStale(ctx context.Context, status string, olderThanSeconds int) ([]models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+`
		FROM escrows
		WHERE status = $1 AND updated_at < now() - ($2 || ' seconds')::interval
	`, status, fmt.Sprintf("%d", olderThanSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	var amountText string
	var recipientsBytes []byte
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.PayerEmail, &amountText, &e.Currency, &e.Chain,
		&recipientsBytes, &e.PayerConfirmed, &e.Status, &e.SchemaVersion, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.TotalAmount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("escrow %s: bad total_amount %q: %w", e.ID, amountText, err)
	}
	if err := json.Unmarshal(recipientsBytes, &e.Recipients); err != nil {
		return nil, fmt.Errorf("escrow %s: bad recipients payload: %w", e.ID, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
