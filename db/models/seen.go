package models

// SeenEvent is one row of the dedup ledger. Rows are insert-only: nothing in
// the bridge updates or deletes them, so redelivery of an id marked before a
// crash stays suppressed after restart.
type SeenEvent struct {
	ID        string `gorm:"primaryKey;size:512"`
	FirstSeen string `gorm:"not null"` // RFC3339
}

func (SeenEvent) TableName() string {
	return "seen"
}
