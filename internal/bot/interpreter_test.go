package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/splitpay/backend/internal/identity"
	"github.com/splitpay/backend/internal/models"
	"github.com/splitpay/backend/internal/repositories"
	"github.com/splitpay/backend/internal/services"
	"go.uber.org/zap"
)

type fakeEngine struct {
	createIn   *services.CreateP2PInput
	createResp *models.Escrow
	createErr  error

	confirmID    string
	confirmActor identity.Identity
	confirmResp  string
	confirmErr   error

	releaseID   string
	releaseResp *services.ReleaseResult
	releaseErr  error

	listFilter *repositories.EscrowFilter
	listResp   []models.Escrow
	listErr    error
}

func (f *fakeEngine) CreateP2P(_ context.Context, in services.CreateP2PInput) (*models.Escrow, error) {
	f.createIn = &in
	return f.createResp, f.createErr
}

func (f *fakeEngine) Confirm(_ context.Context, id string, actor identity.Identity) (string, error) {
	f.confirmID = id
	f.confirmActor = actor
	return f.confirmResp, f.confirmErr
}

func (f *fakeEngine) Release(_ context.Context, id string) (*services.ReleaseResult, error) {
	f.releaseID = id
	return f.releaseResp, f.releaseErr
}

func (f *fakeEngine) List(_ context.Context, filter repositories.EscrowFilter) ([]models.Escrow, error) {
	f.listFilter = &filter
	return f.listResp, f.listErr
}

type fakeProfiles struct {
	byChat  map[int64]*models.ChatProfile
	linkErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byChat: map[int64]*models.ChatProfile{}}
}

func (f *fakeProfiles) GetByChatID(_ context.Context, chatID int64) (*models.ChatProfile, error) {
	p, ok := f.byChat[chatID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) LinkEmail(_ context.Context, chatID int64, username *string, email string) (*models.ChatProfile, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	p := &models.ChatProfile{ChatID: chatID, Username: username, Email: &email}
	f.byChat[chatID] = p
	return p, nil
}

type recorder struct {
	sends []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
}

func (r *recorder) Send(_ context.Context, chatID int64, text string) error {
	r.sends = append(r.sends, sentMessage{chatID: chatID, text: text})
	return nil
}

func newTestInterpreter(eng *fakeEngine) (*Interpreter, *fakeProfiles, *recorder) {
	profiles := newFakeProfiles()
	out := &recorder{}
	return NewInterpreter(eng, profiles, out, zap.NewNop()), profiles, out
}

func update(text string) Update {
	return Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 10,
			From:      &User{ID: 7, Username: "alice"},
			Chat:      Chat{ID: 42},
			Text:      text,
		},
	}
}

func link(profiles *fakeProfiles, chatID int64, email string) {
	profiles.byChat[chatID] = &models.ChatProfile{ChatID: chatID, Email: &email}
}

func onlyReply(t *testing.T, out *recorder) string {
	t.Helper()
	if len(out.sends) != 1 {
		t.Fatalf("got %d replies, want exactly 1: %v", len(out.sends), out.sends)
	}
	if out.sends[0].chatID != 42 {
		t.Fatalf("reply went to chat %d, want 42", out.sends[0].chatID)
	}
	return out.sends[0].text
}

func sampleEscrow() *models.Escrow {
	return &models.Escrow{
		ID:          uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Title:       "P2P payment to bob@x.com",
		PayerEmail:  "alice@x.com",
		TotalAmount: decimal.RequireFromString("25.5"),
		Currency:    models.CurrencyUSDC,
		Chain:       models.ChainTestnet,
		Recipients:  []models.Recipient{{Email: "bob@x.com", Percentage: 100}},
		Status:      models.EscrowStatusFunded,
	}
}

func TestStartCommand(t *testing.T) {
	interp, _, out := newTestInterpreter(&fakeEngine{})
	interp.HandleUpdate(context.Background(), update("/start"))
	if got := onlyReply(t, out); got != startText {
		t.Errorf("/start reply = %q, want the usage text", got)
	}
}

func TestUnknownInput(t *testing.T) {
	tests := []string{"/frobnicate", "hello there", "/START", "/Start", "/pay@SplitPayBot x 1"}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			interp, _, out := newTestInterpreter(&fakeEngine{})
			interp.HandleUpdate(context.Background(), update(text))
			if got := onlyReply(t, out); got != unknownText {
				t.Errorf("reply = %q, want unknown-command text", got)
			}
		})
	}
}

func TestIgnoresUpdatesWithoutText(t *testing.T) {
	interp, _, out := newTestInterpreter(&fakeEngine{})
	interp.HandleUpdate(context.Background(), Update{UpdateID: 1})
	interp.HandleUpdate(context.Background(), update("   "))
	if len(out.sends) != 0 {
		t.Errorf("empty updates produced %d replies, want 0", len(out.sends))
	}
}

func TestLinkCommand(t *testing.T) {
	t.Run("missing argument", func(t *testing.T) {
		interp, _, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/link"))
		if got := onlyReply(t, out); !strings.HasPrefix(got, "Usage: /link") {
			t.Errorf("reply = %q, want usage hint", got)
		}
	})

	t.Run("malformed email", func(t *testing.T) {
		interp, profiles, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/link not-an-email"))
		if got := onlyReply(t, out); !strings.Contains(got, "does not look like an email") {
			t.Errorf("reply = %q, want email validation message", got)
		}
		if len(profiles.byChat) != 0 {
			t.Error("malformed email was linked anyway")
		}
	})

	t.Run("success", func(t *testing.T) {
		interp, profiles, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/link alice@x.com"))
		if got := onlyReply(t, out); got != "Linked alice@x.com. You can now create and confirm escrows." {
			t.Errorf("reply = %q", got)
		}
		p := profiles.byChat[42]
		if p == nil || p.Email == nil || *p.Email != "alice@x.com" {
			t.Errorf("profile not stored: %+v", p)
		}
		if p.Username == nil || *p.Username != "alice" {
			t.Errorf("username not carried over: %+v", p)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		interp, profiles, out := newTestInterpreter(&fakeEngine{})
		profiles.linkErr = errors.New("pg down")
		interp.HandleUpdate(context.Background(), update("/link alice@x.com"))
		if got := onlyReply(t, out); got != busyText {
			t.Errorf("reply = %q, want generic retry text", got)
		}
	})
}

func TestPayCommand(t *testing.T) {
	t.Run("requires link", func(t *testing.T) {
		eng := &fakeEngine{}
		interp, _, out := newTestInterpreter(eng)
		interp.HandleUpdate(context.Background(), update("/pay bob@x.com 25.5"))
		if got := onlyReply(t, out); got != needLinkText {
			t.Errorf("reply = %q, want link prompt", got)
		}
		if eng.createIn != nil {
			t.Error("engine was called without a linked email")
		}
	})

	t.Run("usage", func(t *testing.T) {
		for _, text := range []string{"/pay", "/pay bob@x.com"} {
			eng := &fakeEngine{}
			interp, profiles, out := newTestInterpreter(eng)
			link(profiles, 42, "alice@x.com")
			interp.HandleUpdate(context.Background(), update(text))
			if got := onlyReply(t, out); !strings.HasPrefix(got, "Usage: /pay") {
				t.Errorf("%q reply = %q, want usage hint", text, got)
			}
		}
	})

	t.Run("bad amount", func(t *testing.T) {
		eng := &fakeEngine{}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/pay bob@x.com lots"))
		if got := onlyReply(t, out); got != `Amount must be a number, got "lots"` {
			t.Errorf("reply = %q", got)
		}
		if eng.createIn != nil {
			t.Error("engine was called with an unparseable amount")
		}
	})

	t.Run("success with defaults", func(t *testing.T) {
		eng := &fakeEngine{createResp: sampleEscrow()}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/pay bob@x.com 25.5"))

		if eng.createIn == nil {
			t.Fatal("engine not called")
		}
		if eng.createIn.PayerEmail != "alice@x.com" {
			t.Errorf("payer = %q, want linked email", eng.createIn.PayerEmail)
		}
		if eng.createIn.RecipientEmail != "bob@x.com" {
			t.Errorf("recipient = %q", eng.createIn.RecipientEmail)
		}
		if !eng.createIn.Amount.Equal(decimal.RequireFromString("25.5")) {
			t.Errorf("amount = %s, want 25.5", eng.createIn.Amount)
		}
		if eng.createIn.Currency != "" {
			t.Errorf("currency = %q, want empty for engine default", eng.createIn.Currency)
		}
		got := onlyReply(t, out)
		if !strings.Contains(got, sampleEscrow().ID.String()) || !strings.Contains(got, "/confirm") {
			t.Errorf("reply = %q, want escrow id and confirm hint", got)
		}
	})

	t.Run("currency argument uppercased", func(t *testing.T) {
		eng := &fakeEngine{createResp: sampleEscrow()}
		interp, profiles, _ := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/pay bob@x.com 5 usdt"))
		if eng.createIn.Currency != "USDT" {
			t.Errorf("currency = %q, want USDT", eng.createIn.Currency)
		}
	})

	t.Run("engine validation relayed", func(t *testing.T) {
		eng := &fakeEngine{createErr: &services.ValidationError{Msg: `unsupported currency "DOGE", must be one of: USD, USDC, USDT, ETH, BTC`}}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/pay bob@x.com 5 DOGE"))
		if got := onlyReply(t, out); got != eng.createErr.Error() {
			t.Errorf("reply = %q, want engine message verbatim", got)
		}
	})
}

func TestConfirmCommand(t *testing.T) {
	t.Run("requires link", func(t *testing.T) {
		interp, _, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/confirm 6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
		if got := onlyReply(t, out); got != needLinkText {
			t.Errorf("reply = %q, want link prompt", got)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		interp, profiles, out := newTestInterpreter(&fakeEngine{})
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/confirm"))
		if got := onlyReply(t, out); !strings.HasPrefix(got, "Usage: /confirm") {
			t.Errorf("reply = %q, want usage hint", got)
		}
	})

	t.Run("success", func(t *testing.T) {
		eng := &fakeEngine{confirmResp: models.EscrowStatusReleasable}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/confirm abc-id"))
		if got := onlyReply(t, out); got != "Confirmation recorded. Status: releasable" {
			t.Errorf("reply = %q", got)
		}
		if eng.confirmID != "abc-id" {
			t.Errorf("engine got id %q, want abc-id", eng.confirmID)
		}
		if eng.confirmActor.Email != "alice@x.com" {
			t.Errorf("engine got actor %q, want linked email", eng.confirmActor.Email)
		}
	})

	t.Run("engine errors relayed verbatim", func(t *testing.T) {
		engineErrs := []error{
			services.ErrNotFound,
			services.ErrNotParty,
			&services.ValidationError{Msg: `invalid escrow id "zzz"`},
		}
		for _, engineErr := range engineErrs {
			eng := &fakeEngine{confirmErr: engineErr}
			interp, profiles, out := newTestInterpreter(eng)
			link(profiles, 42, "alice@x.com")
			interp.HandleUpdate(context.Background(), update("/confirm zzz"))
			if got := onlyReply(t, out); got != engineErr.Error() {
				t.Errorf("reply = %q, want %q", got, engineErr.Error())
			}
		}
	})

	t.Run("storage failure stays generic", func(t *testing.T) {
		eng := &fakeEngine{confirmErr: fmt.Errorf("dial tcp: connection refused")}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/confirm abc"))
		if got := onlyReply(t, out); got != busyText {
			t.Errorf("reply = %q, want generic retry text", got)
		}
	})
}

func TestReleaseCommand(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		interp, _, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/release"))
		if got := onlyReply(t, out); !strings.HasPrefix(got, "Usage: /release") {
			t.Errorf("reply = %q, want usage hint", got)
		}
	})

	t.Run("success with payout breakdown", func(t *testing.T) {
		released := sampleEscrow()
		released.Status = models.EscrowStatusReleased
		eng := &fakeEngine{releaseResp: &services.ReleaseResult{
			Escrow:  released,
			Payouts: []services.Payout{{Email: "bob@x.com", Amount: decimal.RequireFromString("25.5")}},
		}}
		interp, _, out := newTestInterpreter(eng)
		interp.HandleUpdate(context.Background(), update("/release abc-id"))
		got := onlyReply(t, out)
		lines := strings.Split(got, "\n")
		if lines[0] != "Funds released (simulated). Status: released" {
			t.Errorf("first line = %q", lines[0])
		}
		if len(lines) != 2 || lines[1] != "25.5 USDC -> bob@x.com" {
			t.Errorf("payout lines = %v", lines[1:])
		}
		if eng.releaseID != "abc-id" {
			t.Errorf("engine got id %q, want abc-id", eng.releaseID)
		}
	})

	t.Run("not releasable relayed", func(t *testing.T) {
		eng := &fakeEngine{releaseErr: services.ErrNotReleasable}
		interp, _, out := newTestInterpreter(eng)
		interp.HandleUpdate(context.Background(), update("/release abc"))
		if got := onlyReply(t, out); got != services.ErrNotReleasable.Error() {
			t.Errorf("reply = %q, want %q", got, services.ErrNotReleasable.Error())
		}
	})
}

func TestMyCommand(t *testing.T) {
	t.Run("requires link", func(t *testing.T) {
		interp, _, out := newTestInterpreter(&fakeEngine{})
		interp.HandleUpdate(context.Background(), update("/my"))
		if got := onlyReply(t, out); got != needLinkText {
			t.Errorf("reply = %q, want link prompt", got)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		eng := &fakeEngine{}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/my"))
		if got := onlyReply(t, out); got != "No escrows found for alice@x.com" {
			t.Errorf("reply = %q", got)
		}
		if eng.listFilter == nil || eng.listFilter.Email == nil || *eng.listFilter.Email != "alice@x.com" {
			t.Errorf("list filter = %+v, want linked email", eng.listFilter)
		}
		if eng.listFilter.Limit != myListLimit {
			t.Errorf("list limit = %d, want %d", eng.listFilter.Limit, myListLimit)
		}
	})

	t.Run("one line per escrow", func(t *testing.T) {
		first := sampleEscrow()
		second := sampleEscrow()
		second.ID = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
		second.Status = models.EscrowStatusReleasable
		eng := &fakeEngine{listResp: []models.Escrow{*first, *second}}
		interp, profiles, out := newTestInterpreter(eng)
		link(profiles, 42, "alice@x.com")
		interp.HandleUpdate(context.Background(), update("/my"))
		got := onlyReply(t, out)
		lines := strings.Split(got, "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2: %q", len(lines), got)
		}
		want := fmt.Sprintf("%s [funded] 25.5 USDC -> bob@x.com", first.ID)
		if lines[0] != want {
			t.Errorf("line[0] = %q, want %q", lines[0], want)
		}
	})
}
