package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

var ErrAlreadySubmitted = errors.New("attempt already submitted")

// IncompleteError is the local completeness gate rejection: the submission
// was blocked before any network call and the learner can fix the input
// and retry.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("submission incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// Recordings holds the three speaking clips, one per part.
type Recordings struct {
	mu    sync.Mutex
	clips [3]*recorder.Clip
}

// Set stores the clip for part 1..3.
func (r *Recordings) Set(part int, clip *recorder.Clip) error {
	if part < 1 || part > 3 {
		return fmt.Errorf("invalid speaking part %d", part)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips[part-1] = clip
	return nil
}

func (r *Recordings) Get(part int) *recorder.Clip {
	if part < 1 || part > 3 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips[part-1]
}

// MissingParts lists the parts that still have no recording.
func (r *Recordings) MissingParts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []string
	for i, c := range r.clips {
		if c.Empty() {
			missing = append(missing, fmt.Sprintf("part %d recording", i+1))
		}
	}
	return missing
}

// Outcome is the one-time navigation performed after a successful submit.
type Outcome struct {
	SubmissionID string `json:"submission_id"`
	Route        string `json:"route"`
}

// Coordinator owns the submit-once semantics of one attempt. Both the
// countdown's expiry signal and a manual request funnel into Submit; the
// submitted flag is claimed before any I/O so the two can never both get
// a network call out.
type Coordinator struct {
	attemptID  string
	assignment *models.Assignment
	userID     string
	store      *AnswerStore
	recordings *Recordings

	backend   backend.Client
	sessions  session.Store
	publisher events.EventPublisher
	logger    utils.Logger

	submitted atomic.Bool
	mu        sync.Mutex
	state     State
	outcome   *Outcome
}

func NewCoordinator(
	attemptID string,
	assignment *models.Assignment,
	userID string,
	store *AnswerStore,
	recordings *Recordings,
	backendClient backend.Client,
	sessions session.Store,
	publisher events.EventPublisher,
	logger utils.Logger,
) *Coordinator {
	return &Coordinator{
		attemptID:  attemptID,
		assignment: assignment,
		userID:     userID,
		store:      store,
		recordings: recordings,
		backend:    backendClient,
		sessions:   sessions,
		publisher:  publisher,
		logger:     logger,
		state:      StateInProgress,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Outcome returns the navigation of a finished attempt, nil before then.
func (c *Coordinator) Outcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Submit performs the attempt's one submission. The flag is claimed
// synchronously before validation and I/O; concurrent callers (timer
// expiry racing a manual click) get ErrAlreadySubmitted. On a network
// failure the flag is released for the manual path so the learner can
// retry; the timeout path never retries.
func (c *Coordinator) Submit(ctx context.Context, trigger Trigger) (*Outcome, error) {
	if !c.submitted.CompareAndSwap(false, true) {
		return nil, ErrAlreadySubmitted
	}

	if missing := c.missingContent(); len(missing) > 0 {
		// Local gate only; no network call was made, so the attempt
		// stays open.
		c.submitted.Store(false)
		return nil, &IncompleteError{Missing: missing}
	}

	c.setState(StateSubmitting)
	c.logger.Info("submitting attempt",
		"attempt_id", c.attemptID,
		"assignment_id", c.assignment.ID,
		"skill", c.assignment.Skill,
		"trigger", trigger)

	record, err := c.send(ctx)
	if err != nil {
		c.setState(StateFailed)
		if trigger == TriggerManual {
			c.submitted.Store(false)
			c.setState(StateInProgress)
		}
		c.logger.LogError(err, "attempt submission failed",
			"attempt_id", c.attemptID, "trigger", trigger)
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	outcome := &Outcome{
		SubmissionID: record.ID,
		Route:        c.resultRoute(record.ID),
	}

	c.mu.Lock()
	c.state = StateSubmitted
	c.outcome = outcome
	c.mu.Unlock()

	c.afterSubmit(ctx, record.ID, trigger)
	return outcome, nil
}

func (c *Coordinator) send(ctx context.Context) (*models.SubmissionRecord, error) {
	switch c.assignment.Skill {
	case models.SkillReading, models.SkillListening:
		payload := BuildObjectivePayload(c.assignment, c.store, c.userID)
		return c.backend.SubmitObjective(ctx, c.assignment.Skill, payload)
	case models.SkillWriting:
		return c.backend.SubmitWriting(ctx, &models.WritingSubmission{
			AssignmentID: c.assignment.ID,
			UserID:       c.userID,
			ContentOne:   c.store.Text(WritingTaskOneKey),
			ContentTwo:   c.store.Text(WritingTaskTwoKey),
		})
	case models.SkillSpeaking:
		return c.backend.SubmitSpeaking(ctx, &backend.SpeakingSubmission{
			AssignmentID: c.assignment.ID,
			UserID:       c.userID,
			AudioOne:     c.recordings.Get(1),
			AudioTwo:     c.recordings.Get(2),
			AudioThree:   c.recordings.Get(3),
		})
	default:
		return nil, fmt.Errorf("unknown skill %q", c.assignment.Skill)
	}
}

// missingContent is the pre-submission completeness gate. Writing and
// speaking block locally on absent content; reading and listening submit
// explicit empty defaults instead, so partial credit stays possible.
func (c *Coordinator) missingContent() []string {
	switch c.assignment.Skill {
	case models.SkillWriting:
		var missing []string
		if WordCount(c.store.Text(WritingTaskOneKey)) == 0 {
			missing = append(missing, "task 1 essay")
		}
		if WordCount(c.store.Text(WritingTaskTwoKey)) == 0 {
			missing = append(missing, "task 2 essay")
		}
		return missing
	case models.SkillSpeaking:
		return c.recordings.MissingParts()
	default:
		return nil
	}
}

func (c *Coordinator) resultRoute(submissionID string) string {
	switch c.assignment.Skill {
	case models.SkillWriting, models.SkillSpeaking:
		// Graded asynchronously; the learner lands on their submissions
		// list and sees the queued notice there.
		return "/assignment/submissions"
	default:
		return fmt.Sprintf("/assignment/%s/%s/result/%s", c.assignment.Skill, c.assignment.ID, submissionID)
	}
}

// afterSubmit runs the post-success side effects: the grading-queued flag
// for asynchronously graded skills and the lifecycle events. Failures here
// are logged, never surfaced — the submission already succeeded.
func (c *Coordinator) afterSubmit(ctx context.Context, submissionID string, trigger Trigger) {
	now := time.Now()

	if !c.assignment.Skill.AutoGraded() {
		if err := c.sessions.SetGradingQueued(ctx, c.userID); err != nil {
			c.logger.LogError(err, "failed to set grading-queued flag", "user_id", c.userID)
		}
		event := events.NewEvent(events.EventGradingQueued, events.GradingQueuedEvent{
			SubmissionID: submissionID,
			AssignmentID: c.assignment.ID,
			Skill:        c.assignment.Skill,
			UserID:       c.userID,
			QueuedAt:     now,
		})
		if err := c.publisher.PublishAssignmentEvent(ctx, event); err != nil {
			c.logger.LogError(err, "failed to publish grading-queued event", "submission_id", submissionID)
		}
	}

	eventType := events.EventAttemptSubmitted
	if trigger == TriggerTimeout {
		eventType = events.EventAttemptAutoSubmitted
	}
	event := events.NewEvent(eventType, events.AttemptSubmittedEvent{
		AttemptID:      c.attemptID,
		AssignmentID:   c.assignment.ID,
		Skill:          c.assignment.Skill,
		UserID:         c.userID,
		SubmissionID:   submissionID,
		SubmittedAt:    now,
		AnsweredCount:  c.store.AnsweredCount(),
		TotalQuestions: c.assignment.TotalQuestions(),
		Trigger:        string(trigger),
	})
	if err := c.publisher.PublishAssignmentEvent(ctx, event); err != nil {
		c.logger.LogError(err, "failed to publish attempt-submitted event", "submission_id", submissionID)
	}

	c.logger.Info("attempt submitted",
		"attempt_id", c.attemptID,
		"submission_id", submissionID,
		"trigger", trigger)
}

// BuildObjectivePayload assembles the reading/listening payload by walking
// the assignment structure, not the answer store, so every question the
// assignment knows contributes exactly one entry. Unanswered questions get
// the explicit kind-specific empty value, never an omission.
func BuildObjectivePayload(a *models.Assignment, store *AnswerStore, userID string) *models.ObjectiveSubmission {
	sub := &models.ObjectiveSubmission{
		AssignmentID:   a.ID,
		SubmittedBy:    userID,
		SectionAnswers: make([]models.SectionAnswers, 0, len(a.Sections)),
	}
	for _, sec := range a.Sections {
		sectionAnswers := models.SectionAnswers{SectionID: sec.ID}
		for _, q := range sec.AllQuestions() {
			sectionAnswers.Answers = append(sectionAnswers.Answers, models.QuestionAnswer{
				QuestionID: q.ID,
				Answer:     store.Get(q.ID),
			})
		}
		sub.SectionAnswers = append(sub.SectionAnswers, sectionAnswers)
	}
	return sub
}
