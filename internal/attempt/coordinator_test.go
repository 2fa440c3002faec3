package attempt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// fakeBackend counts submissions and captures the last payload of each
// kind. The optional failures counter makes the first N calls fail.
type fakeBackend struct {
	mu            sync.Mutex
	objectiveSubs []*models.ObjectiveSubmission
	writingSubs   []*models.WritingSubmission
	speakingSubs  []*backend.SpeakingSubmission
	failures      int32
	delay         time.Duration
}

var errBackendDown = errors.New("backend down")

func (f *fakeBackend) failNext(n int32) { atomic.StoreInt32(&f.failures, n) }

func (f *fakeBackend) maybeFail() error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return errBackendDown
	}
	return nil
}

func (f *fakeBackend) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objectiveSubs) + len(f.writingSubs) + len(f.speakingSubs)
}

func (f *fakeBackend) GetAssignment(context.Context, models.Skill, string) (*models.Assignment, error) {
	return nil, backend.ErrNotFound
}

func (f *fakeBackend) ListAssignments(context.Context, models.Skill, *models.Pagination) (*backend.Page[models.AssignmentOverview], error) {
	return &backend.Page[models.AssignmentOverview]{}, nil
}

func (f *fakeBackend) ListMySubmissions(context.Context, *models.Pagination, models.Skill) (*backend.Page[models.SubmissionOverview], error) {
	return &backend.Page[models.SubmissionOverview]{}, nil
}

func (f *fakeBackend) SubmitObjective(_ context.Context, _ models.Skill, sub *models.ObjectiveSubmission) (*models.SubmissionRecord, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objectiveSubs = append(f.objectiveSubs, sub)
	return &models.SubmissionRecord{ID: "sub-1"}, nil
}

func (f *fakeBackend) SubmitWriting(_ context.Context, sub *models.WritingSubmission) (*models.SubmissionRecord, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writingSubs = append(f.writingSubs, sub)
	return &models.SubmissionRecord{ID: "sub-w"}, nil
}

func (f *fakeBackend) SubmitSpeaking(_ context.Context, sub *backend.SpeakingSubmission) (*models.SubmissionRecord, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speakingSubs = append(f.speakingSubs, sub)
	return &models.SubmissionRecord{ID: "sub-s"}, nil
}

func (f *fakeBackend) GetSubmissionResult(context.Context, models.Skill, string) (*models.SubmissionResult, error) {
	return nil, backend.ErrNotFound
}

func newTestSession(t *testing.T, a *models.Assignment) (*Session, *fakeBackend, *session.MemoryStore, *events.MockEventPublisher) {
	t.Helper()
	fb := &fakeBackend{}
	store := session.NewMemoryStore()
	pub := events.NewMockEventPublisher(slog.Default())
	logger := utils.NewDevelopmentLogger()
	sess := NewSession(a, "user-1", fb, store, pub, logger)
	return sess, fb, store, pub
}

func writingAssignment() *models.Assignment {
	return &models.Assignment{
		ID:      "w1",
		Skill:   models.SkillWriting,
		TaskOne: "Describe the chart.",
		TaskTwo: "Discuss both views.",
	}
}

func speakingAssignment() *models.Assignment {
	return &models.Assignment{
		ID:    "sp1",
		Skill: models.SkillSpeaking,
		Parts: []models.Part{
			{PartNumber: 1, Questions: []models.Question{{ID: "p1q1"}}},
			{PartNumber: 2, Questions: []models.Question{{ID: "p2q1"}}},
			{PartNumber: 3, Questions: []models.Question{{ID: "p3q1"}}},
		},
	}
}

func clip(name string) *recorder.Clip {
	return &recorder.Clip{Name: name + ".webm", MIME: recorder.PreferredMIME, Data: []byte{1, 2, 3}}
}

func TestCoordinator_SubmitOnceUnderRace(t *testing.T) {
	sess, fb, _, _ := newTestSession(t, readingAssignment())
	fb.delay = 10 * time.Millisecond

	ctx := context.Background()
	const callers = 8
	var wg sync.WaitGroup
	var successes, rejects atomic.Int32

	for i := 0; i < callers; i++ {
		trigger := TriggerManual
		if i%2 == 0 {
			trigger = TriggerTimeout
		}
		wg.Add(1)
		go func(tr Trigger) {
			defer wg.Done()
			_, err := sess.Coordinator.Submit(ctx, tr)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadySubmitted):
				rejects.Add(1)
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}(trigger)
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successes = %d, want exactly 1", successes.Load())
	}
	if rejects.Load() != callers-1 {
		t.Errorf("rejects = %d, want %d", rejects.Load(), callers-1)
	}
	if fb.submissionCount() != 1 {
		t.Errorf("backend received %d submissions, want 1", fb.submissionCount())
	}
}

func TestCoordinator_ObjectivePayloadCoversEveryQuestion(t *testing.T) {
	a := readingAssignment()
	sess, fb, _, _ := newTestSession(t, a)

	// Answer only some questions.
	sess.Store.Update("q1", map[string]any{"choice": "A"})
	sess.Store.Update("q4", "short text")

	if _, err := sess.Coordinator.Submit(context.Background(), TriggerManual); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(fb.objectiveSubs) != 1 {
		t.Fatalf("objective submissions = %d, want 1", len(fb.objectiveSubs))
	}
	sub := fb.objectiveSubs[0]
	if sub.AssignmentID != a.ID || sub.SubmittedBy != "user-1" {
		t.Errorf("payload header = %+v", sub)
	}

	total := 0
	for _, sec := range sub.SectionAnswers {
		for _, ans := range sec.Answers {
			total++
			if ans.Answer == nil {
				t.Errorf("question %s submitted nil, want explicit empty value", ans.QuestionID)
			}
		}
	}
	if total != a.TotalQuestions() {
		t.Errorf("payload has %d answers, want %d", total, a.TotalQuestions())
	}
}

func TestCoordinator_WritingGateBlocksBeforeNetwork(t *testing.T) {
	sess, fb, _, _ := newTestSession(t, writingAssignment())
	sess.Store.Update(WritingTaskOneKey, "only the first essay")

	_, err := sess.Coordinator.Submit(context.Background(), TriggerManual)

	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if len(incomplete.Missing) != 1 {
		t.Errorf("missing = %v, want one entry", incomplete.Missing)
	}
	if fb.submissionCount() != 0 {
		t.Error("gate failure must not reach the backend")
	}

	// The flag was released; completing the content lets the retry pass.
	sess.Store.Update(WritingTaskTwoKey, "and the second essay")
	if _, err := sess.Coordinator.Submit(context.Background(), TriggerManual); err != nil {
		t.Fatalf("retry after gate failure: %v", err)
	}
	if len(fb.writingSubs) != 1 {
		t.Fatalf("writing submissions = %d, want 1", len(fb.writingSubs))
	}
	if fb.writingSubs[0].ContentOne == "" || fb.writingSubs[0].ContentTwo == "" {
		t.Errorf("writing payload = %+v", fb.writingSubs[0])
	}
}

func TestCoordinator_SpeakingGateRequiresThreeClips(t *testing.T) {
	sess, fb, _, _ := newTestSession(t, speakingAssignment())
	sess.Recordings.Set(1, clip("part1"))
	sess.Recordings.Set(3, clip("part3"))

	_, err := sess.Coordinator.Submit(context.Background(), TriggerManual)

	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if fb.submissionCount() != 0 {
		t.Error("gate failure must not reach the backend")
	}

	sess.Recordings.Set(2, clip("part2"))
	outcome, err := sess.Coordinator.Submit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if outcome.Route != "/assignment/submissions" {
		t.Errorf("speaking route = %q", outcome.Route)
	}
}

func TestCoordinator_ManualFailureReleasesFlag(t *testing.T) {
	sess, fb, _, _ := newTestSession(t, readingAssignment())
	fb.failNext(1)

	if _, err := sess.Coordinator.Submit(context.Background(), TriggerManual); err == nil {
		t.Fatal("expected network failure")
	}
	if sess.Coordinator.State() != StateInProgress {
		t.Errorf("state after manual failure = %s, want in_progress", sess.Coordinator.State())
	}

	if _, err := sess.Coordinator.Submit(context.Background(), TriggerManual); err != nil {
		t.Fatalf("retry after manual failure: %v", err)
	}
	if fb.submissionCount() != 1 {
		t.Errorf("backend submissions = %d, want 1", fb.submissionCount())
	}
}

func TestCoordinator_TimeoutFailureDoesNotRetry(t *testing.T) {
	sess, fb, _, _ := newTestSession(t, readingAssignment())
	fb.failNext(1)

	if _, err := sess.Coordinator.Submit(context.Background(), TriggerTimeout); err == nil {
		t.Fatal("expected network failure")
	}
	if sess.Coordinator.State() != StateFailed {
		t.Errorf("state after timeout failure = %s, want failed", sess.Coordinator.State())
	}

	_, err := sess.Coordinator.Submit(context.Background(), TriggerManual)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("submit after timeout failure = %v, want ErrAlreadySubmitted", err)
	}
	if fb.submissionCount() != 0 {
		t.Errorf("backend submissions = %d, want 0", fb.submissionCount())
	}
}

func TestCoordinator_ObjectiveOutcomeRoute(t *testing.T) {
	sess, _, _, _ := newTestSession(t, readingAssignment())

	outcome, err := sess.Coordinator.Submit(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := "/assignment/reading/a1/result/sub-1"
	if outcome.Route != want {
		t.Errorf("route = %q, want %q", outcome.Route, want)
	}
	if outcome.SubmissionID != "sub-1" {
		t.Errorf("submission id = %q", outcome.SubmissionID)
	}
}

func TestCoordinator_GradingQueuedOnlyForAsyncSkills(t *testing.T) {
	ctx := context.Background()

	t.Run("writing sets the flag and event", func(t *testing.T) {
		sess, _, store, pub := newTestSession(t, writingAssignment())
		sess.Store.Update(WritingTaskOneKey, "one")
		sess.Store.Update(WritingTaskTwoKey, "two")

		if _, err := sess.Coordinator.Submit(ctx, TriggerManual); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		queued, err := store.ConsumeGradingQueued(ctx, "user-1")
		if err != nil || !queued {
			t.Errorf("grading queued = %v, %v; want true", queued, err)
		}
		// One-shot: a second read comes back false.
		queued, _ = store.ConsumeGradingQueued(ctx, "user-1")
		if queued {
			t.Error("grading notice must clear after first read")
		}

		var sawQueued, sawSubmitted bool
		for _, e := range pub.GetPublishedEvents() {
			switch e.Type {
			case events.EventGradingQueued:
				sawQueued = true
			case events.EventAttemptSubmitted:
				sawSubmitted = true
			}
		}
		if !sawQueued || !sawSubmitted {
			t.Errorf("events queued=%v submitted=%v, want both", sawQueued, sawSubmitted)
		}
	})

	t.Run("reading leaves the flag alone", func(t *testing.T) {
		sess, _, store, pub := newTestSession(t, readingAssignment())

		if _, err := sess.Coordinator.Submit(ctx, TriggerTimeout); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		queued, _ := store.ConsumeGradingQueued(ctx, "user-1")
		if queued {
			t.Error("auto-graded skill must not set the grading notice")
		}
		for _, e := range pub.GetPublishedEvents() {
			if e.Type == events.EventGradingQueued {
				t.Error("auto-graded skill must not publish grading.queued")
			}
			if e.Type == events.EventAttemptAutoSubmitted {
				return
			}
		}
		t.Error("timeout submit must publish attempt.auto_submitted")
	})
}

func TestSession_TimerExpirySubmits(t *testing.T) {
	a := readingAssignment()
	fb := &fakeBackend{}
	store := session.NewMemoryStore()
	pub := events.NewMockEventPublisher(slog.Default())
	sess := NewSession(a, "user-1", fb, store, pub, utils.NewDevelopmentLogger())

	sess.Start(context.Background())
	defer sess.Close()

	// Drain the countdown directly instead of waiting on the ticker.
	for sess.Timer.Remaining() > 0 {
		sess.Timer.Tick()
	}

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expiry watcher did not finish")
	}

	if fb.submissionCount() != 1 {
		t.Errorf("backend submissions = %d, want 1", fb.submissionCount())
	}
	if sess.Coordinator.State() != StateSubmitted {
		t.Errorf("state = %s, want submitted", sess.Coordinator.State())
	}
}

func TestSession_WritingDuration(t *testing.T) {
	sess, _, _, _ := newTestSession(t, writingAssignment())
	if sess.Timer.Total() != 60*60 {
		t.Errorf("writing duration = %ds, want 3600", sess.Timer.Total())
	}

	sp, _, _, _ := newTestSession(t, speakingAssignment())
	if sp.Timer.Total() != 15*60 {
		t.Errorf("speaking duration = %ds, want 900", sp.Timer.Total())
	}
}
