package dto

import "github.com/shopspring/decimal"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateEscrowResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// StatusResponse reports the escrow status after confirm and cancel.
type StatusResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type PayoutItem struct {
	Email  string          `json:"email"`
	Wallet *string         `json:"wallet,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

type ReleaseResponse struct {
	Message string       `json:"message"`
	Status  string       `json:"status"`
	Payouts []PayoutItem `json:"payouts"`
}

type ItemsResponse struct {
	Items any `json:"items"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}
