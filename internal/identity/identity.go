// Package identity names the acting party for escrow operations.
//
// Identities are asserted by the caller (an email in an API body, a
// linked chat profile in the bot), never authenticated. Keeping the
// engine on this type means an auth layer can be added later without
// touching engine logic.
package identity

import (
	"fmt"
	"net/mail"
	"strings"
)

type Identity struct {
	Email string
}

func FromEmail(email string) Identity {
	return Identity{Email: strings.TrimSpace(email)}
}

func (i Identity) IsZero() bool {
	return i.Email == ""
}

// ValidEmail checks that s is a bare RFC 5322 address. Display-name
// forms like "Bob <bob@x.com>" are rejected.
func ValidEmail(s string) error {
	parsed, err := mail.ParseAddress(s)
	if err != nil {
		return err
	}
	if parsed.Address != s {
		return fmt.Errorf("not a bare address")
	}
	return nil
}
