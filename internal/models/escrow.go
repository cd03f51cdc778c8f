package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow statuses
const (
	EscrowStatusPending    = "pending" // reserved for future flows, never produced today
	EscrowStatusFunded     = "funded"
	EscrowStatusReleasable = "releasable"
	EscrowStatusReleased   = "released"
	EscrowStatusCancelled  = "cancelled"
)

// Valid state transitions: from -> []to
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusPending:    {EscrowStatusFunded},
	EscrowStatusFunded:     {EscrowStatusReleasable, EscrowStatusCancelled},
	EscrowStatusReleasable: {EscrowStatusReleased, EscrowStatusCancelled},
	EscrowStatusReleased:   {},
	EscrowStatusCancelled:  {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidEscrowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Supported settlement currencies
const (
	CurrencyUSD  = "USD"
	CurrencyUSDC = "USDC"
	CurrencyUSDT = "USDT"
	CurrencyETH  = "ETH"
	CurrencyBTC  = "BTC"
)

// Supported settlement chains
const (
	ChainEthereum = "ethereum"
	ChainPolygon  = "polygon"
	ChainSolana   = "solana"
	ChainBitcoin  = "bitcoin"
	ChainTestnet  = "testnet"
)

var Currencies = []string{CurrencyUSD, CurrencyUSDC, CurrencyUSDT, CurrencyETH, CurrencyBTC}

var Chains = []string{ChainEthereum, ChainPolygon, ChainSolana, ChainBitcoin, ChainTestnet}

func IsSupportedCurrency(c string) bool {
	for _, s := range Currencies {
		if s == c {
			return true
		}
	}
	return false
}

func IsSupportedChain(c string) bool {
	for _, s := range Chains {
		if s == c {
			return true
		}
	}
	return false
}

// PercentTolerance is the float drift allowed when recipient percentages
// are summed at creation time. The sum is never re-checked afterwards.
const PercentTolerance = 1e-6

// EscrowSchemaVersion is written to every new row and checked on read.
const EscrowSchemaVersion = 1

type Recipient struct {
	Email      string  `json:"email"`
	Percentage float64 `json:"percentage"` // share of total_amount, 0..100
	Wallet     *string `json:"wallet,omitempty"`
	Confirmed  bool    `json:"confirmed"`
}

type Escrow struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Description    *string         `json:"description,omitempty"`
	PayerEmail     string          `json:"payer_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	Chain          string          `json:"chain"`
	Recipients     []Recipient     `json:"recipients"`
	PayerConfirmed bool            `json:"payer_confirmed"`
	Status         string          `json:"status"`
	SchemaVersion  int             `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (e *Escrow) AllRecipientsConfirmed() bool {
	for _, r := range e.Recipients {
		if !r.Confirmed {
			return false
		}
	}
	return len(e.Recipients) > 0
}

// FullyConfirmed reports whether the payer and every recipient have confirmed.
func (e *Escrow) FullyConfirmed() bool {
	return e.PayerConfirmed && e.AllRecipientsConfirmed()
}

// IsTerminal reports whether no further transitions exist from the current status.
func (e *Escrow) IsTerminal() bool {
	return len(ValidEscrowTransitions[e.Status]) == 0
}

func (e *Escrow) IsParty(email string) bool {
	if e.PayerEmail == email {
		return true
	}
	for _, r := range e.Recipients {
		if r.Email == email {
			return true
		}
	}
	return false
}

func (e *Escrow) RecipientEmails() []string {
	out := make([]string, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		out = append(out, r.Email)
	}
	return out
}

// Validate checks structural sanity of a row decoded from storage.
// The percentage sum is a creation-time invariant and is deliberately
// not re-checked here.
func (e *Escrow) Validate() error {
	if e.SchemaVersion > EscrowSchemaVersion || e.SchemaVersion < 1 {
		return fmt.Errorf("escrow %s: unsupported schema version %d", e.ID, e.SchemaVersion)
	}
	if _, ok := ValidEscrowTransitions[e.Status]; !ok {
		return fmt.Errorf("escrow %s: unknown status %q", e.ID, e.Status)
	}
	if !IsSupportedCurrency(e.Currency) {
		return fmt.Errorf("escrow %s: unsupported currency %q", e.ID, e.Currency)
	}
	if !IsSupportedChain(e.Chain) {
		return fmt.Errorf("escrow %s: unsupported chain %q", e.ID, e.Chain)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("escrow %s: no recipients", e.ID)
	}
	for i, r := range e.Recipients {
		if r.Email == "" {
			return fmt.Errorf("escrow %s: recipient %d has no email", e.ID, i)
		}
		if r.Percentage < 0 || r.Percentage > 100 {
			return fmt.Errorf("escrow %s: recipient %d percentage %v out of range", e.ID, i, r.Percentage)
		}
	}
	return nil
}
