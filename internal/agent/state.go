package agent

// State is a step of the observe-decide-act cycle
type State int

const (
	StateSeeding State = iota
	StateObserving
	StateDeciding
	StateExecuting
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "seeding"
	case StateObserving:
		return "observing"
	case StateDeciding:
		return "deciding"
	case StateExecuting:
		return "executing"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason says why a job terminated without error
type Reason string

const (
	// ReasonModelDone means the model answered with no actions
	ReasonModelDone Reason = "model_done"
	// ReasonExhausted means the cycle bound was reached
	ReasonExhausted Reason = "exhausted"
)

// Outcome summarizes a finished run
type Outcome struct {
	Reason Reason `json:"reason,omitempty"`
	Cycles int    `json:"cycles"`
}
