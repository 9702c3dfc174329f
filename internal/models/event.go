package models

import "time"

// Event types written to the journal.
const (
	EventPourStarted    = "POUR_STARTED"
	EventPourFinished   = "POUR_FINISHED"
	EventRefillStarted  = "REFILL_STARTED"
	EventRefillFinished = "REFILL_FINISHED"
	EventManual         = "MANUAL"
	EventError          = "ERROR"
)

// BarEvent is a single journal entry.
type BarEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // POUR_STARTED | POUR_FINISHED | REFILL_STARTED | REFILL_FINISHED | MANUAL | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
