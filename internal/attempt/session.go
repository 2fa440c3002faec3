package attempt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// Answer-store keys for the two writing tasks. Writing has no question
// list, so the essays live in the store under fixed keys.
const (
	WritingTaskOneKey = "contentOne"
	WritingTaskTwoKey = "contentTwo"
)

// Session is one live attempt: the countdown, the answer store, the
// navigator and the coordinator for a single learner on a single
// assignment. Sessions live in memory for their whole duration; the
// snapshot in the session store is only a crash-recovery aid.
type Session struct {
	ID         string
	Assignment *models.Assignment
	UserID     string
	StartedAt  time.Time

	Store       *AnswerStore
	Timer       *Countdown
	Nav         *Navigator
	Recordings  *Recordings
	Coordinator *Coordinator

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(
	assignment *models.Assignment,
	userID string,
	backendClient backend.Client,
	sessions session.Store,
	publisher events.EventPublisher,
	logger utils.Logger,
) *Session {
	id := uuid.New().String()

	kinds := make(map[string]models.InteractionKind)
	for _, sec := range assignment.Sections {
		for _, q := range sec.AllQuestions() {
			kinds[q.ID] = q.Kind
		}
	}
	if assignment.Skill == models.SkillWriting {
		kinds[WritingTaskOneKey] = models.InteractionFreeText
		kinds[WritingTaskTwoKey] = models.InteractionFreeText
	}

	store := NewAnswerStore(kinds)
	recordings := &Recordings{}

	return &Session{
		ID:          id,
		Assignment:  assignment,
		UserID:      userID,
		StartedAt:   time.Now(),
		Store:       store,
		Timer:       NewCountdown(assignment.Duration()),
		Nav:         NewNavigator(assignment, nil),
		Recordings:  recordings,
		Coordinator: NewCoordinator(id, assignment, userID, store, recordings, backendClient, sessions, publisher, logger),
		done:        make(chan struct{}),
	}
}

// Start launches the countdown and the expiry watcher. When the countdown
// reaches zero the watcher submits whatever is in the store; an auto
// submission never retries and never reopens the attempt.
func (s *Session) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.Timer.Start(ctx)

	go func() {
		defer close(s.done)
		select {
		case <-ctx.Done():
		case <-s.Timer.Expired():
			// Detached context: the submit must outlive the session
			// teardown that follows expiry.
			submitCtx, submitCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer submitCancel()
			s.Coordinator.Submit(submitCtx, TriggerTimeout)
		}
	}()
}

// Close stops the countdown and the expiry watcher. Idempotent.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Timer.Stop()
}

// Done is closed once the expiry watcher has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// TimeRemaining returns the seconds left on the countdown.
func (s *Session) TimeRemaining() int {
	return s.Timer.Remaining()
}

// Snapshot captures the restorable state of the attempt for the session
// store.
func (s *Session) Snapshot() (*session.Snapshot, error) {
	answers, err := json.Marshal(s.Store.Snapshot())
	if err != nil {
		return nil, err
	}
	return &session.Snapshot{
		AttemptID:     s.ID,
		AssignmentID:  s.Assignment.ID,
		Skill:         string(s.Assignment.Skill),
		UserID:        s.UserID,
		StartedAt:     s.StartedAt,
		Answers:       answers,
		ActiveSection: s.Nav.Active(),
	}, nil
}
