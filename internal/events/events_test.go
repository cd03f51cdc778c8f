package events

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStr(t *testing.T) {
	e := Event{Type: EventEscrowConfirmed, Payload: map[string]any{
		"title":  "Website redesign",
		"number": 3.0,
	}}

	if got := e.Str("title"); got != "Website redesign" {
		t.Errorf("Str(title) = %q", got)
	}
	if got := e.Str("number"); got != "" {
		t.Errorf("Str(number) = %q, want empty for non-string", got)
	}
	if got := e.Str("missing"); got != "" {
		t.Errorf("Str(missing) = %q, want empty", got)
	}
}

func TestStrsHandlesBothRepresentations(t *testing.T) {
	direct := Event{Payload: map[string]any{
		"recipient_emails": []string{"a@x.com", "b@x.com"},
	}}
	if got := direct.Strs("recipient_emails"); !reflect.DeepEqual(got, []string{"a@x.com", "b@x.com"}) {
		t.Errorf("Strs on []string = %v", got)
	}

	// After a publish/subscribe round trip the slice arrives as []any.
	data, err := json.Marshal(direct)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if got := decoded.Strs("recipient_emails"); !reflect.DeepEqual(got, []string{"a@x.com", "b@x.com"}) {
		t.Errorf("Strs after decode = %v", got)
	}

	if got := decoded.Strs("missing"); got != nil {
		t.Errorf("Strs(missing) = %v, want nil", got)
	}
}
