package domain

import "time"

// AttemptOutcome classifies one provider call
type AttemptOutcome string

const (
	AttemptOutcomeSuccess       AttemptOutcome = "success"
	AttemptOutcomeTimeout       AttemptOutcome = "timeout"
	AttemptOutcomeRejected      AttemptOutcome = "rejected"
	AttemptOutcomeInvalidOutput AttemptOutcome = "invalid_output"
)

// ProviderAttempt records one provider call made during a generate call.
// It is never persisted on its own, only inside GenerationMetadata.
type ProviderAttempt struct {
	Provider string         `json:"provider"`
	Outcome  AttemptOutcome `json:"outcome"`
	Elapsed  time.Duration  `json:"elapsed_ns"`
	Error    string         `json:"error,omitempty"`
}
