package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{EscrowStatusFunded, EscrowStatusReleasable, true},
		{EscrowStatusReleasable, EscrowStatusReleased, true},
		{EscrowStatusPending, EscrowStatusFunded, true},

		// Cancellation paths
		{EscrowStatusFunded, EscrowStatusCancelled, true},
		{EscrowStatusReleasable, EscrowStatusCancelled, true},

		// Invalid transitions
		{EscrowStatusFunded, EscrowStatusReleased, false},
		{EscrowStatusReleasable, EscrowStatusFunded, false},
		{EscrowStatusReleased, EscrowStatusReleasable, false},
		{EscrowStatusReleased, EscrowStatusCancelled, false},
		{EscrowStatusCancelled, EscrowStatusFunded, false},
		{EscrowStatusCancelled, EscrowStatusReleased, false},
		{EscrowStatusPending, EscrowStatusReleasable, false},
		{EscrowStatusFunded, EscrowStatusFunded, false},
		{"nonexistent", EscrowStatusFunded, false},
		{EscrowStatusFunded, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		EscrowStatusPending, EscrowStatusFunded, EscrowStatusReleasable,
		EscrowStatusReleased, EscrowStatusCancelled,
	}

	for _, status := range allStatuses {
		if _, ok := ValidEscrowTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidEscrowTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{EscrowStatusReleased, EscrowStatusCancelled}
	for _, status := range terminal {
		transitions := ValidEscrowTransitions[status]
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestFullyConfirmed(t *testing.T) {
	tests := []struct {
		name           string
		payerConfirmed bool
		recipients     []Recipient
		expected       bool
	}{
		{"nobody confirmed", false, []Recipient{{Email: "a@x.com"}}, false},
		{"payer only", true, []Recipient{{Email: "a@x.com"}}, false},
		{"recipients only", false, []Recipient{{Email: "a@x.com", Confirmed: true}}, false},
		{"one of two recipients", true, []Recipient{
			{Email: "a@x.com", Confirmed: true},
			{Email: "b@x.com"},
		}, false},
		{"everyone", true, []Recipient{
			{Email: "a@x.com", Confirmed: true},
			{Email: "b@x.com", Confirmed: true},
		}, true},
		{"no recipients at all", true, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Escrow{PayerConfirmed: tt.payerConfirmed, Recipients: tt.recipients}
			if got := e.FullyConfirmed(); got != tt.expected {
				t.Errorf("FullyConfirmed() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{EscrowStatusPending, false},
		{EscrowStatusFunded, false},
		{EscrowStatusReleasable, false},
		{EscrowStatusReleased, true},
		{EscrowStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			e := &Escrow{Status: tt.status}
			if got := e.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal() with status %q = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestIsParty(t *testing.T) {
	e := &Escrow{
		PayerEmail: "payer@x.com",
		Recipients: []Recipient{{Email: "a@x.com"}, {Email: "b@x.com"}},
	}

	tests := []struct {
		email    string
		expected bool
	}{
		{"payer@x.com", true},
		{"a@x.com", true},
		{"b@x.com", true},
		{"stranger@x.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := e.IsParty(tt.email); got != tt.expected {
				t.Errorf("IsParty(%q) = %v, want %v", tt.email, got, tt.expected)
			}
		})
	}
}

func validEscrow() *Escrow {
	return &Escrow{
		ID:            uuid.New(),
		Title:         "Design work",
		PayerEmail:    "payer@x.com",
		TotalAmount:   decimal.NewFromInt(100),
		Currency:      CurrencyUSDC,
		Chain:         ChainTestnet,
		Recipients:    []Recipient{{Email: "a@x.com", Percentage: 100}},
		Status:        EscrowStatusFunded,
		SchemaVersion: EscrowSchemaVersion,
	}
}

func TestEscrowValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Escrow)
		wantErr string
	}{
		{"valid row", func(e *Escrow) {}, ""},
		{"future schema version", func(e *Escrow) { e.SchemaVersion = EscrowSchemaVersion + 1 }, "schema version"},
		{"zero schema version", func(e *Escrow) { e.SchemaVersion = 0 }, "schema version"},
		{"unknown status", func(e *Escrow) { e.Status = "frozen" }, "unknown status"},
		{"unsupported currency", func(e *Escrow) { e.Currency = "DOGE" }, "unsupported currency"},
		{"unsupported chain", func(e *Escrow) { e.Chain = "ton" }, "unsupported chain"},
		{"no recipients", func(e *Escrow) { e.Recipients = nil }, "no recipients"},
		{"recipient without email", func(e *Escrow) { e.Recipients[0].Email = "" }, "no email"},
		{"percentage above 100", func(e *Escrow) { e.Recipients[0].Percentage = 101 }, "out of range"},
		{"negative percentage", func(e *Escrow) { e.Recipients[0].Percentage = -1 }, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEscrow()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}

	// Percentage sum is a creation-time invariant and must not fail reads.
	e := validEscrow()
	e.Recipients = []Recipient{
		{Email: "a@x.com", Percentage: 30},
		{Email: "b@x.com", Percentage: 30},
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() rejected a row with percentage sum != 100: %v", err)
	}
}

func TestSupportedEnums(t *testing.T) {
	if !IsSupportedCurrency(CurrencyUSDC) || IsSupportedCurrency("usdc") || IsSupportedCurrency("DOGE") {
		t.Error("IsSupportedCurrency mismatch: want exact uppercase matches only")
	}
	if !IsSupportedChain(ChainTestnet) || IsSupportedChain("Testnet") || IsSupportedChain("ton") {
		t.Error("IsSupportedChain mismatch: want exact lowercase matches only")
	}
}
