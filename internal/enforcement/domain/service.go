package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
)

type Service interface {
	// ProcessOne claims and executes the next pending sync job. Returns nil
	// when the queue is empty.
	ProcessOne(ctx context.Context) (*Result, error)

	// Drain processes jobs until the queue is empty or max jobs have run.
	Drain(ctx context.Context, max int) (Summary, error)
}

// Outcome is the terminal state ProcessOne reached for one job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetried   Outcome = "retried"
	OutcomeDead      Outcome = "dead"
)

// Result describes one processed job.
type Result struct {
	JobID      snowflake.ID      `json:"job_id"`
	Action     syncdomain.Action `json:"action"`
	ResourceID snowflake.ID      `json:"resource_id"`
	Outcome    Outcome           `json:"outcome"`
	Detail     string            `json:"detail,omitempty"`
}

// Summary aggregates a drain run.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Retried   int `json:"retried"`
	Dead      int `json:"dead"`
}

var ErrUnknownAction = errors.New("unknown_sync_action")
