// Package bridge is the core of the OrangeCarrier -> Telegram bridge: the
// canonical event record, the normalizer that flattens the three upstream
// payload shapes into it, and the dedup-and-deliver pipeline.
package bridge

import "encoding/json"

type Source string

const (
	SourcePush   Source = "push"   // structured Socket.IO event
	SourceFrame  Source = "frame"  // raw websocket [event, payload] frame
	SourceScrape Source = "scrape" // block scraped from the live-calls page
)

// Event is the canonical unit of work fed to the pipeline.
type Event struct {
	ID       string
	Source   Source
	Text     string
	AudioRef string

	// Generic marks events with no stable upstream identifier. They bypass
	// the seen-event ledger and are delivered every time.
	Generic bool
}

type RawKind int

const (
	RawPush RawKind = iota
	RawFrame
	RawBlocks
)

// RawEvent is what a transport hands to the normalizer, before any shape or
// id decisions are made.
type RawEvent struct {
	Kind    RawKind
	Name    string          // push only: upstream event name ("call", "auth_response", ...)
	Payload json.RawMessage // push: event object; frame: full [event, payload] array
	Blocks  []Block         // scrape only
}

// Block is one text fragment scraped from the live-calls page, with the
// audio URL found inside it (if any).
type Block struct {
	Text     string
	AudioURL string
}
