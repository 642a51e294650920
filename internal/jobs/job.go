// Package jobs tracks background agent runs by id.
package jobs

import (
	"time"

	"github.com/v0xg/cuagent/internal/agent"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is final
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of one run. Reason is set only for completed jobs and Error only for failed ones.
type Job struct {
	ID         string       `json:"id"`
	Prompt     string       `json:"prompt"`
	Status     Status       `json:"status"`
	Reason     agent.Reason `json:"reason,omitempty"`
	Error      string       `json:"error,omitempty"`
	Cycles     int          `json:"cycles"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}
