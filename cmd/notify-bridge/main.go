package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/splitpay/backend/internal/bot"
	"github.com/splitpay/backend/internal/config"
	"github.com/splitpay/backend/internal/db"
	"github.com/splitpay/backend/internal/events"
	"github.com/splitpay/backend/internal/repositories"
	"go.uber.org/zap"
)

// Notify bridge - subscribes to escrow events and pushes a Telegram
// message to every chat whose linked email is party to the escrow.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	profileRepo := repositories.NewProfileRepo(pool)
	telegram := bot.NewTelegramClient(cfg.TelegramAPIBaseURL, cfg.BotToken, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	bridge := &bridge{profiles: profileRepo, telegram: telegram, log: log}

	log.Info("notify-bridge started")

	_ = subscriber.Subscribe(ctx, events.StreamEscrow, func(event events.Event) {
		bridge.deliver(ctx, event)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

type bridge struct {
	profiles *repositories.ProfileRepo
	telegram *bot.TelegramClient
	log      *zap.Logger
}

func (b *bridge) deliver(ctx context.Context, event events.Event) {
	text, emails := renderNotification(event)
	if text == "" || len(emails) == 0 {
		return
	}

	for _, email := range emails {
		profiles, err := b.profiles.ListByEmail(ctx, email)
		if err != nil {
			b.log.Error("profile lookup failed", zap.String("email", email), zap.Error(err))
			continue
		}
		for _, p := range profiles {
			if err := b.telegram.Send(ctx, p.ChatID, text); err != nil {
				b.log.Warn("notification not delivered", zap.Int64("chat_id", p.ChatID), zap.Error(err))
			}
		}
	}
}

// renderNotification builds the message text and picks who gets it.
// The actor of a confirmation is skipped, they already saw the bot
// reply.
func renderNotification(event events.Event) (string, []string) {
	title := event.Str("title")
	actor := event.Str("actor_email")
	payer := event.Str("payer_email")
	recipients := event.Strs("recipient_emails")

	switch event.Type {
	case events.EventEscrowCreated:
		text := fmt.Sprintf("New escrow %q from %s: %s %s. Confirm with /confirm %s",
			title, payer, event.Str("total_amount"), event.Str("currency"), event.Str("escrow_id"))
		return text, dedupe(recipients, actor)
	case events.EventEscrowConfirmed:
		text := fmt.Sprintf("%s confirmed escrow %q.", actor, title)
		return text, dedupe(append(recipients, payer), actor)
	case events.EventEscrowStatusChanged:
		text := fmt.Sprintf("Escrow %q is now %s.", title, event.Str("new_status"))
		return text, dedupe(append(recipients, payer), "")
	}
	return "", nil
}

func dedupe(emails []string, skip string) []string {
	seen := map[string]bool{skip: true, "": true}
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
