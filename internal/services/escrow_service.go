package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/splitpay/backend/internal/config"
	"github.com/splitpay/backend/internal/events"
	"github.com/splitpay/backend/internal/identity"
	"github.com/splitpay/backend/internal/models"
	"github.com/splitpay/backend/internal/repositories"
	"go.uber.org/zap"
)

// ValidationError covers malformed or inconsistent input: bad ids,
// missing fields, percentage sums off by more than the tolerance. The
// message is shown to callers as-is, on both transports.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound       = errors.New("escrow not found")
	ErrNotParty       = errors.New("actor is not part of this escrow")
	ErrNotReleasable  = errors.New("escrow is not yet releasable")
	ErrNotCancellable = errors.New("escrow cannot be cancelled")
)

// EscrowStore is the persistence contract of the engine. Mutate must
// hold per-escrow mutual exclusion for the duration of fn.
type EscrowStore interface {
	Insert(ctx context.Context, e *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	Mutate(ctx context.Context, id uuid.UUID, fn repositories.EscrowMutator) (*models.Escrow, error)
	List(ctx context.Context, f repositories.EscrowFilter) ([]models.Escrow, error)
	ListStale(ctx context.Context, status string, olderThanSeconds int) ([]models.Escrow, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByEscrow(ctx context.Context, escrowID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

type EscrowService struct {
	store     EscrowStore
	audit     AuditStore
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewEscrowService(store EscrowStore, audit AuditStore, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *EscrowService {
	return &EscrowService{
		store:     store,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type RecipientInput struct {
	Email      string
	Percentage float64
	Wallet     *string
}

type CreateEscrowInput struct {
	Title       string
	Description *string
	PayerEmail  string
	TotalAmount decimal.Decimal
	Currency    string // empty means the configured default
	Chain       string // empty means the configured default
	Recipients  []RecipientInput
}

type CreateP2PInput struct {
	PayerEmail     string
	RecipientEmail string
	Amount         decimal.Decimal
	Currency       string
	Chain          string
}

func (s *EscrowService) Create(ctx context.Context, in CreateEscrowInput) (*models.Escrow, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.PayerEmail = strings.TrimSpace(in.PayerEmail)
	for i := range in.Recipients {
		in.Recipients[i].Email = strings.TrimSpace(in.Recipients[i].Email)
	}
	if in.Currency == "" {
		in.Currency = s.cfg.DefaultCurrency
	}
	if in.Chain == "" {
		in.Chain = s.cfg.DefaultChain
	}
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	recipients := make([]models.Recipient, 0, len(in.Recipients))
	for _, r := range in.Recipients {
		recipients = append(recipients, models.Recipient{
			Email:      r.Email,
			Percentage: r.Percentage,
			Wallet:     r.Wallet,
		})
	}

	e := &models.Escrow{
		Title:         in.Title,
		Description:   in.Description,
		PayerEmail:    in.PayerEmail,
		TotalAmount:   in.TotalAmount,
		Currency:      in.Currency,
		Chain:         in.Chain,
		Recipients:    recipients,
		Status:        models.EscrowStatusFunded,
		SchemaVersion: models.EscrowSchemaVersion,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		EscrowID:   e.ID,
		ActorEmail: &e.PayerEmail,
		ActorType:  "user",
		Action:     models.AuditEscrowCreated,
		Meta:       map[string]any{"total_amount": e.TotalAmount.String(), "currency": e.Currency, "recipients": len(e.Recipients)},
	})
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    events.EventEscrowCreated,
		Payload: escrowPayload(e, "", e.PayerEmail),
	})

	return e, nil
}

// CreateP2P builds the single-recipient escrow behind the bot's /pay
// command: one recipient at 100% and a synthesized title.
func (s *EscrowService) CreateP2P(ctx context.Context, in CreateP2PInput) (*models.Escrow, error) {
	recipient := strings.TrimSpace(in.RecipientEmail)
	return s.Create(ctx, CreateEscrowInput{
		Title:       "P2P payment to " + recipient,
		PayerEmail:  in.PayerEmail,
		TotalAmount: in.Amount,
		Currency:    in.Currency,
		Chain:       in.Chain,
		Recipients:  []RecipientInput{{Email: recipient, Percentage: 100}},
	})
}

// Confirm records that the actor approves the escrow. The payer match
// takes precedence; otherwise every recipient entry with the actor's
// email is marked. Confirming an already-settled escrow is a no-op that
// reports the current status.
func (s *EscrowService) Confirm(ctx context.Context, id string, actor identity.Identity) (string, error) {
	escrowID, err := parseEscrowID(id)
	if err != nil {
		return "", err
	}
	if actor.IsZero() {
		return "", validationf("actor email is required")
	}

	var oldStatus string
	e, err := s.store.Mutate(ctx, escrowID, func(e *models.Escrow) (bool, error) {
		oldStatus = e.Status
		if e.IsTerminal() {
			return false, nil
		}
		matched := false
		if e.PayerEmail == actor.Email {
			e.PayerConfirmed = true
			matched = true
		} else {
			for i := range e.Recipients {
				if e.Recipients[i].Email == actor.Email {
					e.Recipients[i].Confirmed = true
					matched = true
				}
			}
		}
		if !matched {
			return false, ErrNotParty
		}
		if e.FullyConfirmed() && models.IsValidTransition(e.Status, models.EscrowStatusReleasable) {
			e.Status = models.EscrowStatusReleasable
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if e.IsTerminal() {
		// Nothing was recorded; the escrow had already settled.
		return e.Status, nil
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		EscrowID:   e.ID,
		ActorEmail: &actor.Email,
		ActorType:  "user",
		Action:     models.AuditEscrowConfirmed,
		Meta:       map[string]any{"old_status": oldStatus, "new_status": e.Status},
	})
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    events.EventEscrowConfirmed,
		Payload: escrowPayload(e, oldStatus, actor.Email),
	})
	if e.Status != oldStatus {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type:    events.EventEscrowStatusChanged,
			Payload: escrowPayload(e, oldStatus, actor.Email),
		})
	}

	return e.Status, nil
}

type Payout struct {
	Email  string          `json:"email"`
	Wallet *string         `json:"wallet,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

type ReleaseResult struct {
	Escrow  *models.Escrow
	Payouts []Payout
}

// Release settles a fully-confirmed escrow. No funds move; the payout
// breakdown is computed and recorded as the simulated settlement.
func (s *EscrowService) Release(ctx context.Context, id string) (*ReleaseResult, error) {
	escrowID, err := parseEscrowID(id)
	if err != nil {
		return nil, err
	}

	var oldStatus string
	e, err := s.store.Mutate(ctx, escrowID, func(e *models.Escrow) (bool, error) {
		oldStatus = e.Status
		if e.Status != models.EscrowStatusReleasable {
			return false, ErrNotReleasable
		}
		e.Status = models.EscrowStatusReleased
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	payouts := SplitPayouts(e)
	_ = s.audit.Log(ctx, models.AuditLog{
		EscrowID:  e.ID,
		ActorType: "user",
		Action:    models.AuditEscrowReleased,
		Meta:      map[string]any{"old_status": oldStatus, "payouts": payouts},
	})
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    events.EventEscrowStatusChanged,
		Payload: escrowPayload(e, oldStatus, ""),
	})

	return &ReleaseResult{Escrow: e, Payouts: payouts}, nil
}

// Cancel voids an unsettled escrow. Only the payer may cancel.
func (s *EscrowService) Cancel(ctx context.Context, id string, actor identity.Identity) (string, error) {
	escrowID, err := parseEscrowID(id)
	if err != nil {
		return "", err
	}
	if actor.IsZero() {
		return "", validationf("actor email is required")
	}
	return s.cancel(ctx, escrowID, &actor.Email, "user", func(e *models.Escrow) error {
		if e.PayerEmail != actor.Email {
			if !e.IsParty(actor.Email) {
				return ErrNotParty
			}
			return validationf("only the payer can cancel an escrow")
		}
		return nil
	})
}

// AutoCancel voids a stale escrow on behalf of the system. Used by the
// background worker; no party check applies.
func (s *EscrowService) AutoCancel(ctx context.Context, escrowID uuid.UUID) (string, error) {
	return s.cancel(ctx, escrowID, nil, "system", func(e *models.Escrow) error { return nil })
}

func (s *EscrowService) cancel(ctx context.Context, escrowID uuid.UUID, actorEmail *string, actorType string, allowed func(*models.Escrow) error) (string, error) {
	var oldStatus string
	e, err := s.store.Mutate(ctx, escrowID, func(e *models.Escrow) (bool, error) {
		oldStatus = e.Status
		if err := allowed(e); err != nil {
			return false, err
		}
		if !models.IsValidTransition(e.Status, models.EscrowStatusCancelled) {
			return false, ErrNotCancellable
		}
		e.Status = models.EscrowStatusCancelled
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		EscrowID:   e.ID,
		ActorEmail: actorEmail,
		ActorType:  actorType,
		Action:     models.AuditEscrowCancelled,
		Meta:       map[string]any{"old_status": oldStatus},
	})
	actor := ""
	if actorEmail != nil {
		actor = *actorEmail
	}
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    events.EventEscrowStatusChanged,
		Payload: escrowPayload(e, oldStatus, actor),
	})

	return e.Status, nil
}

func (s *EscrowService) Get(ctx context.Context, id string) (*models.Escrow, error) {
	escrowID, err := parseEscrowID(id)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetByID(ctx, escrowID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *EscrowService) List(ctx context.Context, f repositories.EscrowFilter) ([]models.Escrow, error) {
	if f.Email != nil {
		trimmed := strings.TrimSpace(*f.Email)
		f.Email = &trimmed
	}
	return s.store.List(ctx, f)
}

// Events returns the audit trail of one escrow, newest first.
func (s *EscrowService) Events(ctx context.Context, id string) ([]models.AuditLog, error) {
	escrowID, err := parseEscrowID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListByEscrow(ctx, escrowID, 100, 0)
}

// SplitPayouts computes the per-recipient settlement breakdown:
// total_amount x percentage / 100, rounded to 8 decimal places.
func SplitPayouts(e *models.Escrow) []Payout {
	hundred := decimal.NewFromInt(100)
	payouts := make([]Payout, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		amount := e.TotalAmount.Mul(decimal.NewFromFloat(r.Percentage)).Div(hundred).Round(8)
		payouts = append(payouts, Payout{Email: r.Email, Wallet: r.Wallet, Amount: amount})
	}
	return payouts
}

// --- helpers ---

func parseEscrowID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, validationf("invalid escrow id %q", id)
	}
	return parsed, nil
}

func validateCreateInput(in CreateEscrowInput) error {
	if in.Title == "" {
		return validationf("title is required")
	}
	if err := identity.ValidEmail(in.PayerEmail); err != nil {
		return validationf("invalid payer email %q", in.PayerEmail)
	}
	if !in.TotalAmount.IsPositive() {
		return validationf("total_amount must be positive")
	}
	if !models.IsSupportedCurrency(in.Currency) {
		return validationf("unsupported currency %q, must be one of: %s", in.Currency, strings.Join(models.Currencies, ", "))
	}
	if !models.IsSupportedChain(in.Chain) {
		return validationf("unsupported chain %q, must be one of: %s", in.Chain, strings.Join(models.Chains, ", "))
	}
	if len(in.Recipients) == 0 {
		return validationf("at least one recipient is required")
	}
	sum := 0.0
	for _, r := range in.Recipients {
		if err := identity.ValidEmail(r.Email); err != nil {
			return validationf("invalid recipient email %q", r.Email)
		}
		if r.Percentage < 0 || r.Percentage > 100 {
			return validationf("recipient percentage must be between 0 and 100, got %v", r.Percentage)
		}
		sum += r.Percentage
	}
	if math.Abs(sum-100) > models.PercentTolerance {
		return validationf("recipient percentages must add up to 100, got %v", sum)
	}
	return nil
}

func escrowPayload(e *models.Escrow, oldStatus, actorEmail string) map[string]any {
	return map[string]any{
		"escrow_id":        e.ID.String(),
		"title":            e.Title,
		"old_status":       oldStatus,
		"new_status":       e.Status,
		"actor_email":      actorEmail,
		"payer_email":      e.PayerEmail,
		"recipient_emails": e.RecipientEmails(),
		"total_amount":     e.TotalAmount.String(),
		"currency":         e.Currency,
	}
}
