package bridge

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Scraped fragments shorter than this are page chrome, not calls.
	minBlockLen = 10
	// Leading slice of the scraped text that participates in the dedup key.
	scrapeKeyTextLen = 120
	scrapeKeySep     = "|"
)

type NormalizerOptions struct {
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Normalizer converts the heterogeneous upstream payload shapes into
// canonical events. Malformed payloads are logged and dropped; they never
// reach the pipeline and never crash the transport supervisor.
type Normalizer struct {
	logger *slog.Logger
	nowFn  func() time.Time
	newID  func() string
}

func NewNormalizer(opts NormalizerOptions) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Normalizer{logger: logger, nowFn: nowFn, newID: newID}
}

func (n *Normalizer) Normalize(raw RawEvent) []Event {
	switch raw.Kind {
	case RawPush:
		return n.fromPush(raw.Name, raw.Payload)
	case RawFrame:
		return n.fromFrame(raw.Payload)
	case RawBlocks:
		return n.fromBlocks(raw.Blocks)
	default:
		n.logger.Warn("normalize_unknown_kind", "kind", int(raw.Kind))
		return nil
	}
}

func (n *Normalizer) fromPush(name string, payload json.RawMessage) []Event {
	name = strings.TrimSpace(name)
	if name == "call" {
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err == nil && obj != nil {
			return []Event{{
				ID:     n.idOrNow(obj["id"]),
				Source: SourcePush,
				Text:   "New call received:\n" + indentJSON(payload),
			}}
		}
		// fall through: a non-object "call" payload has no stable id
	}
	return []Event{n.genericEvent(SourcePush, name, payload)}
}

func (n *Normalizer) fromFrame(frame json.RawMessage) []Event {
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil || len(parts) == 0 {
		n.logger.Warn("normalize_frame_error", "error", frameErrString(err), "frame", previewJSON(frame))
		return nil
	}
	var eventType string
	if err := json.Unmarshal(parts[0], &eventType); err != nil {
		n.logger.Warn("normalize_frame_error", "error", "event type is not a string", "frame", previewJSON(frame))
		return nil
	}
	var payload json.RawMessage
	if len(parts) > 1 {
		payload = parts[1]
	}

	if eventType == "call" {
		if records := callRecords(payload); len(records) > 0 {
			out := make([]Event, 0, len(records))
			for _, rec := range records {
				recJSON, err := json.Marshal(rec)
				if err != nil {
					continue
				}
				out = append(out, Event{
					ID:     n.idOrNow(rec["id"]),
					Source: SourceFrame,
					Text:   "New call received:\n" + indentJSON(recJSON),
				})
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return []Event{n.genericEvent(SourceFrame, eventType, payload)}
}

// fromBlocks filters and keys scraped page blocks. Exact key collisions
// within one fetch are suppressed here, before the seen-event ledger is
// consulted at all.
func (n *Normalizer) fromBlocks(blocks []Block) []Event {
	out := make([]Event, 0, len(blocks))
	local := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if len(text) < minBlockLen {
			continue
		}
		id := ScrapeKey(b.AudioURL, text)
		if local[id] {
			continue
		}
		local[id] = true
		out = append(out, Event{
			ID:       id,
			Source:   SourceScrape,
			Text:     text,
			AudioRef: strings.TrimSpace(b.AudioURL),
		})
	}
	return out
}

// ScrapeKey is the dedup key for scraped content: audio URL (or empty) plus
// the leading slice of the text. Best-effort, not exact: two calls with
// identical opening text collide, and a reformatted repeat of the same call
// slips through.
func ScrapeKey(audioURL, text string) string {
	head := []rune(strings.TrimSpace(text))
	if len(head) > scrapeKeyTextLen {
		head = head[:scrapeKeyTextLen]
	}
	return strings.TrimSpace(audioURL) + scrapeKeySep + string(head)
}

func (n *Normalizer) genericEvent(source Source, name string, payload json.RawMessage) Event {
	text := "Event data:\n" + previewJSON(payload)
	switch name {
	case "":
	case "auth_response":
		text = "Auth response:\n" + indentJSON(payload)
	default:
		text = "Event " + name + ":\n" + previewJSON(payload)
	}
	return Event{
		ID:      "generic_" + n.newID(),
		Source:  source,
		Text:    text,
		Generic: true,
	}
}

func (n *Normalizer) idOrNow(v any) string {
	if s := stringifyID(v); s != "" {
		return s
	}
	return strconv.FormatInt(n.nowFn().UnixNano(), 10)
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// callRecords digs the per-call objects out of a framed "call" payload.
// Observed shapes: {"calls": [...]} and {"calls": {"calls": [...]}}.
func callRecords(payload json.RawMessage) []map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil
	}
	inner := obj["calls"]
	if m, ok := inner.(map[string]any); ok {
		inner = m["calls"]
	}
	list, ok := inner.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

func previewJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	return string(raw)
}

func frameErrString(err error) string {
	if err == nil {
		return "empty frame array"
	}
	return err.Error()
}
