package models

import "time"

// ChatProfile links a Telegram chat to an escrow party email.
// The email is asserted via /link, not authenticated.
type ChatProfile struct {
	ChatID    int64     `json:"chat_id"`
	Username  *string   `json:"username,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Wallet    *string   `json:"wallet,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
