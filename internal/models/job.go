package models

import "time"

// Outcome is the terminal state of a pour, a pour channel, or a refill.
type Outcome string

const (
	OutcomeRunning  Outcome = "running"
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded" // pour finished but at least one channel did not succeed
	OutcomeTimeout  Outcome = "timeout"
	OutcomeFault    Outcome = "fault"
	OutcomeStopped  Outcome = "stopped" // forced off by a manual stop or shutdown
)

// ChannelResult describes one ingredient line of a pour.
type ChannelResult struct {
	Reservoir   int           `json:"reservoir"`
	RequestedML float64       `json:"requested_ml"`
	DispensedML float64       `json:"dispensed_ml"`
	Planned     time.Duration `json:"planned_ns"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Outcome     Outcome       `json:"outcome"`
	Error       string        `json:"error,omitempty"`
}

// PourResult is returned when a pour is accepted (Outcome=running) or finished.
type PourResult struct {
	JobID     string          `json:"job_id"`
	Recipe    string          `json:"recipe"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"` // longest planned channel
	Outcome   Outcome         `json:"outcome"`
	Channels  []ChannelResult `json:"channels,omitempty"`
}

// DurationSeconds is Duration expressed in seconds.
func (r PourResult) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// RefillResult describes one refill job.
type RefillResult struct {
	JobID     string        `json:"job_id"`
	Reservoir int           `json:"reservoir"`
	StartedAt time.Time     `json:"started_at"`
	Timeout   time.Duration `json:"timeout_ns"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
}
