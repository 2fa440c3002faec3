package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrSnapshotNotFound = errors.New("attempt snapshot not found")

// Snapshot is the session-scoped record of a live attempt, enough to show
// the learner where they were. Durable domain state stays on the backend;
// this is presentation state only and expires with the session.
type Snapshot struct {
	AttemptID     string          `json:"attempt_id"`
	AssignmentID  string          `json:"assignment_id"`
	Skill         string          `json:"skill"`
	UserID        string          `json:"user_id"`
	StartedAt     time.Time       `json:"started_at"`
	Answers       json.RawMessage `json:"answers"`
	ActiveSection int             `json:"active_section"`
}

// Store is the session-scoped storage capability the workflow depends on,
// instead of reaching for browser storage directly. The grading-queued
// flag is a one-shot sentinel: Consume reports and clears it in one step.
type Store interface {
	SetGradingQueued(ctx context.Context, userID string) error
	ConsumeGradingQueued(ctx context.Context, userID string) (bool, error)

	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context, attemptID string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, attemptID string) error
}
