package service

import "time"

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "POUR_STARTED", "POUR_FINISHED", "REFILL_STARTED", "REFILL_FINISHED", "MANUAL", "ERROR"
}
