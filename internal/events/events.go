package events

import "context"

// Event types
const (
	EventEscrowCreated       = "escrow_created"
	EventEscrowConfirmed     = "escrow_confirmed"
	EventEscrowStatusChanged = "escrow_status_changed"
)

// StreamEscrow is the pub/sub channel carrying every escrow event.
const StreamEscrow = "events:escrow"

// Event payloads are denormalized (party emails, amount, title) so
// consumers can render notifications without a database read.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Str returns a string payload field, or "" when absent.
func (e Event) Str(key string) string {
	v, _ := e.Payload[key].(string)
	return v
}

// Strs returns a string-slice payload field. JSON decoding yields
// []any, so both representations are handled.
func (e Event) Strs(key string) []string {
	switch v := e.Payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
