package bridge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(NormalizerOptions{
		Now:   func() time.Time { return time.Unix(1700000000, 0) },
		NewID: func() string { return "fixed" },
	})
}

func TestNormalizeStructuredPushCall(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawPush,
		Name:    "call",
		Payload: json.RawMessage(`{"id": "42", "caller": "555-1234"}`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	ev := events[0]
	if ev.ID != "42" {
		t.Fatalf("id mismatch: got %q want %q", ev.ID, "42")
	}
	if ev.Generic {
		t.Fatalf("generic mismatch: got true want false")
	}
	if ev.Source != SourcePush {
		t.Fatalf("source mismatch: got %q", ev.Source)
	}
	if !strings.Contains(ev.Text, "555-1234") {
		t.Fatalf("text does not carry payload: %q", ev.Text)
	}
}

func TestNormalizeStructuredPushDefaultsIDToNow(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawPush,
		Name:    "call",
		Payload: json.RawMessage(`{"caller": "555-1234"}`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	want := "1700000000000000000"
	if events[0].ID != want {
		t.Fatalf("id mismatch: got %q want %q", events[0].ID, want)
	}
}

func TestNormalizePushNumericID(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawPush,
		Name:    "call",
		Payload: json.RawMessage(`{"id": 42}`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	if events[0].ID != "42" {
		t.Fatalf("id mismatch: got %q want %q", events[0].ID, "42")
	}
}

func TestNormalizePushNonCallIsGeneric(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawPush,
		Name:    "auth_response",
		Payload: json.RawMessage(`{"ok": true}`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	if !events[0].Generic {
		t.Fatalf("generic mismatch: got false want true")
	}
	if !strings.HasPrefix(events[0].ID, "generic_") {
		t.Fatalf("generic id mismatch: got %q", events[0].ID)
	}
	if !strings.Contains(events[0].Text, "Auth response") {
		t.Fatalf("text mismatch: %q", events[0].Text)
	}
}

func TestNormalizeFrameNestedCalls(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawFrame,
		Payload: json.RawMessage(`["call", {"calls": {"calls": [{"id": "7"}]}}]`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	if events[0].ID != "7" {
		t.Fatalf("id mismatch: got %q want %q", events[0].ID, "7")
	}
	if events[0].Generic {
		t.Fatalf("generic mismatch: got true want false")
	}
	if events[0].Source != SourceFrame {
		t.Fatalf("source mismatch: got %q", events[0].Source)
	}
}

func TestNormalizeFrameFlatCallsList(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawFrame,
		Payload: json.RawMessage(`["call", {"calls": [{"id": "1"}, {"id": "2"}]}]`),
	})
	if len(events) != 2 {
		t.Fatalf("events mismatch: got %d want 2", len(events))
	}
	if events[0].ID != "1" || events[1].ID != "2" {
		t.Fatalf("ids mismatch: got %q, %q", events[0].ID, events[1].ID)
	}
}

func TestNormalizeFrameUnknownTypeIsGeneric(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawFrame,
		Payload: json.RawMessage(`["stats", {"active": 3}]`),
	})
	if len(events) != 1 {
		t.Fatalf("events mismatch: got %d want 1", len(events))
	}
	if !events[0].Generic {
		t.Fatalf("generic mismatch: got false want true")
	}
	if !strings.Contains(events[0].Text, "stats") {
		t.Fatalf("text mismatch: %q", events[0].Text)
	}
}

func TestNormalizeFrameMalformedIsDropped(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind:    RawFrame,
		Payload: json.RawMessage(`{not json`),
	})
	if len(events) != 0 {
		t.Fatalf("events mismatch: got %d want 0", len(events))
	}
}

func TestNormalizeBlocksFiltersAndDedupes(t *testing.T) {
	t.Parallel()

	n := testNormalizer()
	events := n.Normalize(RawEvent{
		Kind: RawBlocks,
		Blocks: []Block{
			{Text: "short"},
			{Text: "Incoming call from +1 555 0100", AudioURL: "https://hub.example.com/rec/a.mp3"},
			{Text: "Incoming call from +1 555 0100", AudioURL: "https://hub.example.com/rec/a.mp3"},
			{Text: "Incoming call from +1 555 0199"},
		},
	})
	if len(events) != 2 {
		t.Fatalf("events mismatch: got %d want 2", len(events))
	}
	wantID := ScrapeKey("https://hub.example.com/rec/a.mp3", "Incoming call from +1 555 0100")
	if events[0].ID != wantID {
		t.Fatalf("id mismatch: got %q want %q", events[0].ID, wantID)
	}
	if events[0].AudioRef != "https://hub.example.com/rec/a.mp3" {
		t.Fatalf("audio ref mismatch: got %q", events[0].AudioRef)
	}
	if events[1].AudioRef != "" {
		t.Fatalf("audio ref mismatch: got %q want empty", events[1].AudioRef)
	}
}

func TestScrapeKeyTruncatesText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	key := ScrapeKey("", long)
	if len([]rune(key)) != 1+120 {
		t.Fatalf("key length mismatch: got %d want %d", len([]rune(key)), 1+120)
	}
	if key != ScrapeKey("", long+"different tail") {
		t.Fatalf("keys should match on first 120 chars")
	}
}
