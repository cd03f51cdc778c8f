package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/splitpay/backend/internal/identity"
	"github.com/splitpay/backend/internal/models"
	"github.com/splitpay/backend/internal/repositories"
	"github.com/splitpay/backend/internal/services"
	"go.uber.org/zap"
)

// Engine is the slice of the escrow service the interpreter needs.
type Engine interface {
	CreateP2P(ctx context.Context, in services.CreateP2PInput) (*models.Escrow, error)
	Confirm(ctx context.Context, id string, actor identity.Identity) (string, error)
	Release(ctx context.Context, id string) (*services.ReleaseResult, error)
	List(ctx context.Context, f repositories.EscrowFilter) ([]models.Escrow, error)
}

type ProfileStore interface {
	GetByChatID(ctx context.Context, chatID int64) (*models.ChatProfile, error)
	LinkEmail(ctx context.Context, chatID int64, username *string, email string) (*models.ChatProfile, error)
}

type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

const startText = `SplitPay escrow bot.

Commands:
/link <email> - link your email
/pay <recipient-email> <amount> [currency] - create a P2P escrow
/confirm <escrow-id> - confirm your side of an escrow
/release <escrow-id> - release a fully confirmed escrow
/my - list your escrows`

const unknownText = "Unknown command. Send /start for the list of commands."

const needLinkText = "Link your email first: /link you@example.com"

const busyText = "Something went wrong, try again later."

// myListLimit caps the /my reply at a chat-friendly size.
const myListLimit = 10

// Interpreter turns webhook updates into escrow operations. Commands
// are matched case-sensitively on the first whitespace-separated token;
// every handled message produces exactly one reply.
type Interpreter struct {
	engine   Engine
	profiles ProfileStore
	notifier Notifier
	log      *zap.Logger
}

func NewInterpreter(engine Engine, profiles ProfileStore, notifier Notifier, log *zap.Logger) *Interpreter {
	return &Interpreter{
		engine:   engine,
		profiles: profiles,
		notifier: notifier,
		log:      log,
	}
}

// HandleUpdate routes one update to its command handler. Updates
// without a text message are ignored.
func (i *Interpreter) HandleUpdate(ctx context.Context, upd Update) {
	if upd.Message == nil || strings.TrimSpace(upd.Message.Text) == "" {
		return
	}
	msg := upd.Message
	fields := strings.Fields(msg.Text)
	cmd, args := fields[0], fields[1:]

	var reply string
	switch cmd {
	case "/start":
		reply = startText
	case "/link":
		reply = i.link(ctx, msg, args)
	case "/pay":
		reply = i.pay(ctx, msg, args)
	case "/confirm":
		reply = i.confirm(ctx, msg, args)
	case "/release":
		reply = i.release(ctx, args)
	case "/my":
		reply = i.my(ctx, msg)
	default:
		reply = unknownText
	}

	_ = i.notifier.Send(ctx, msg.Chat.ID, reply)
}

func (i *Interpreter) link(ctx context.Context, msg *Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /link you@example.com"
	}
	email := args[0]
	if err := identity.ValidEmail(email); err != nil {
		return fmt.Sprintf("%q does not look like an email address", email)
	}
	if _, err := i.profiles.LinkEmail(ctx, msg.Chat.ID, usernameOf(msg), email); err != nil {
		i.log.Error("link failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		return busyText
	}
	return fmt.Sprintf("Linked %s. You can now create and confirm escrows.", email)
}

func (i *Interpreter) pay(ctx context.Context, msg *Message, args []string) string {
	payer, ok := i.linkedEmail(ctx, msg.Chat.ID)
	if !ok {
		return needLinkText
	}
	if len(args) < 2 {
		return "Usage: /pay <recipient-email> <amount> [currency]"
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Sprintf("Amount must be a number, got %q", args[1])
	}
	currency := ""
	if len(args) >= 3 {
		currency = strings.ToUpper(args[2])
	}

	e, err := i.engine.CreateP2P(ctx, services.CreateP2PInput{
		PayerEmail:     payer,
		RecipientEmail: args[0],
		Amount:         amount,
		Currency:       currency,
	})
	if err != nil {
		return i.errorReply(err)
	}
	return fmt.Sprintf("Escrow %s created: %s %s to %s. Both sides must /confirm %s before release.",
		e.ID, e.TotalAmount, e.Currency, e.Recipients[0].Email, e.ID)
}

func (i *Interpreter) confirm(ctx context.Context, msg *Message, args []string) string {
	email, ok := i.linkedEmail(ctx, msg.Chat.ID)
	if !ok {
		return needLinkText
	}
	if len(args) == 0 {
		return "Usage: /confirm <escrow-id>"
	}
	status, err := i.engine.Confirm(ctx, args[0], identity.FromEmail(email))
	if err != nil {
		return i.errorReply(err)
	}
	return fmt.Sprintf("Confirmation recorded. Status: %s", status)
}

func (i *Interpreter) release(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /release <escrow-id>"
	}
	res, err := i.engine.Release(ctx, args[0])
	if err != nil {
		return i.errorReply(err)
	}
	lines := []string{fmt.Sprintf("Funds released (simulated). Status: %s", res.Escrow.Status)}
	for _, p := range res.Payouts {
		lines = append(lines, fmt.Sprintf("%s %s -> %s", p.Amount, res.Escrow.Currency, p.Email))
	}
	return strings.Join(lines, "\n")
}

func (i *Interpreter) my(ctx context.Context, msg *Message) string {
	email, ok := i.linkedEmail(ctx, msg.Chat.ID)
	if !ok {
		return needLinkText
	}
	list, err := i.engine.List(ctx, repositories.EscrowFilter{Email: &email, Limit: myListLimit})
	if err != nil {
		return i.errorReply(err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("No escrows found for %s", email)
	}
	lines := make([]string, 0, len(list))
	for _, e := range list {
		lines = append(lines, fmt.Sprintf("%s [%s] %s %s -> %s",
			e.ID, e.Status, e.TotalAmount, e.Currency, strings.Join(e.RecipientEmails(), ", ")))
	}
	return strings.Join(lines, "\n")
}

func (i *Interpreter) linkedEmail(ctx context.Context, chatID int64) (string, bool) {
	p, err := i.profiles.GetByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			i.log.Error("profile lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return "", false
	}
	if p.Email == nil || *p.Email == "" {
		return "", false
	}
	return *p.Email, true
}

// errorReply relays engine errors word for word; anything outside the
// engine's own conditions becomes a generic retry hint.
func (i *Interpreter) errorReply(err error) string {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNotParty),
		errors.Is(err, services.ErrNotReleasable),
		errors.Is(err, services.ErrNotCancellable):
		return err.Error()
	}
	i.log.Error("engine call failed", zap.Error(err))
	return busyText
}

func usernameOf(msg *Message) *string {
	if msg.From == nil || msg.From.Username == "" {
		return nil
	}
	u := msg.From.Username
	return &u
}
