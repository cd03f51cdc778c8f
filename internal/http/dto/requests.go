package dto

import "github.com/shopspring/decimal"

type RecipientInput struct {
	Email      string  `json:"email"`
	Percentage float64 `json:"percentage"`
	Wallet     *string `json:"wallet,omitempty"`
}

type CreateEscrowRequest struct {
	Title       string           `json:"title"`
	Description *string          `json:"description,omitempty"`
	PayerEmail  string           `json:"payer_email"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Currency    string           `json:"currency,omitempty"` // defaults to DEFAULT_CURRENCY
	Chain       string           `json:"chain,omitempty"`    // defaults to DEFAULT_CHAIN
	Recipients  []RecipientInput `json:"recipients"`
}

type CreateP2PRequest struct {
	PayerEmail     string          `json:"payer_email"`
	RecipientEmail string          `json:"recipient_email"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Chain          string          `json:"chain,omitempty"`
}

type ConfirmRequest struct {
	Actor string `json:"actor"`
}

type CancelRequest struct {
	Actor string `json:"actor"`
}
