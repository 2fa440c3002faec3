package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idest-edu/assignment-gateway/internal/attempt"
	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// stubBackend serves a fixed set of assignments and records submissions.
type stubBackend struct {
	mu          sync.Mutex
	assignments map[string]*models.Assignment
	objective   []*models.ObjectiveSubmission
	writing     []*models.WritingSubmission
	speaking    []*backend.SpeakingSubmission
}

func (f *stubBackend) GetAssignment(_ context.Context, _ models.Skill, id string) (*models.Assignment, error) {
	if a, ok := f.assignments[id]; ok {
		return a, nil
	}
	return nil, backend.ErrNotFound
}

func (f *stubBackend) ListAssignments(context.Context, models.Skill, *models.Pagination) (*backend.Page[models.AssignmentOverview], error) {
	return &backend.Page[models.AssignmentOverview]{}, nil
}

func (f *stubBackend) ListMySubmissions(context.Context, *models.Pagination, models.Skill) (*backend.Page[models.SubmissionOverview], error) {
	return &backend.Page[models.SubmissionOverview]{}, nil
}

func (f *stubBackend) SubmitObjective(_ context.Context, _ models.Skill, sub *models.ObjectiveSubmission) (*models.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objective = append(f.objective, sub)
	return &models.SubmissionRecord{ID: "sub-1"}, nil
}

func (f *stubBackend) SubmitWriting(_ context.Context, sub *models.WritingSubmission) (*models.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writing = append(f.writing, sub)
	return &models.SubmissionRecord{ID: "sub-w"}, nil
}

func (f *stubBackend) SubmitSpeaking(_ context.Context, sub *backend.SpeakingSubmission) (*models.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, sub)
	return &models.SubmissionRecord{ID: "sub-s"}, nil
}

func (f *stubBackend) GetSubmissionResult(context.Context, models.Skill, string) (*models.SubmissionResult, error) {
	return nil, backend.ErrNotFound
}

func testAssignments() map[string]*models.Assignment {
	return map[string]*models.Assignment{
		"r1": {
			ID:    "r1",
			Title: "Reading 1",
			Skill: models.SkillReading,
			Sections: []models.Section{
				{ID: "s1", QuestionGroups: []models.QuestionGroup{
					{ID: "g1", Questions: []models.Question{
						{ID: "q1", Kind: models.InteractionShortAnswer},
						{ID: "q2", Kind: models.InteractionMultipleChoice},
					}},
				}},
			},
		},
		"w1": {
			ID:      "w1",
			Title:   "Writing 1",
			Skill:   models.SkillWriting,
			TaskOne: "Task one prompt",
			TaskTwo: "Task two prompt",
		},
		"sp1": {
			ID:    "sp1",
			Title: "Speaking 1",
			Skill: models.SkillSpeaking,
			Parts: []models.Part{
				{PartNumber: 1, Questions: []models.Question{{ID: "p1q1"}}},
				{PartNumber: 2, Questions: []models.Question{{ID: "p2q1"}}},
				{PartNumber: 3, Questions: []models.Question{{ID: "p3q1"}}},
			},
		},
	}
}

func newTestService(t *testing.T) (AttemptService, *stubBackend, *session.MemoryStore, *events.MockEventPublisher) {
	t.Helper()
	fb := &stubBackend{assignments: testAssignments()}
	store := session.NewMemoryStore()
	pub := events.NewMockEventPublisher(slog.Default())
	svc := NewAttemptService(fb, store, pub, utils.NewDevelopmentLogger(), utils.NewValidator())
	return svc, fb, store, pub
}

func TestAttemptService_StartAndResume(t *testing.T) {
	svc, _, store, pub := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)
	require.NotNil(t, view.Assignment)
	assert.Equal(t, attempt.StateInProgress, view.State)
	assert.Equal(t, 60*60, view.TimeRemaining)
	assert.Equal(t, 2, view.TotalCount)

	// Snapshot saved for crash recovery.
	snap, err := store.LoadSnapshot(ctx, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.AssignmentID)

	// Starting again resumes the same attempt.
	again, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, view.AttemptID, again.AttemptID)

	var started int
	for _, e := range pub.GetPublishedEvents() {
		if e.Type == events.EventAttemptStarted {
			started++
		}
	}
	assert.Equal(t, 1, started, "resume must not publish a second started event")
}

func TestAttemptService_StartValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Start(context.Background(), &StartAttemptRequest{Skill: "maths", AssignmentID: "r1"}, "u1")
	assert.True(t, IsValidation(err), "err = %v", err)

	_, err = svc.Start(context.Background(), &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "nope"}, "u1")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAttemptService_OwnershipEnforced(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, view.AttemptID, "intruder")
	assert.True(t, IsUnauthorized(err), "err = %v", err)

	err = svc.SaveAnswer(ctx, view.AttemptID, "intruder", &SaveAnswerRequest{QuestionID: "q1", Answer: "x"})
	assert.True(t, IsUnauthorized(err), "err = %v", err)
}

func TestAttemptService_SubmitFlow(t *testing.T) {
	svc, fb, store, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.SaveAnswer(ctx, view.AttemptID, "u1", &SaveAnswerRequest{
		QuestionID: "q1",
		Answer:     "an answer",
	}))

	outcome, err := svc.Submit(ctx, view.AttemptID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", outcome.SubmissionID)
	assert.Equal(t, "/assignment/reading/r1/result/sub-1", outcome.Route)

	require.Len(t, fb.objective, 1)
	assert.Equal(t, 2, fb.objective[0].AnswerCount(), "payload covers every question")

	// Attempt is gone afterwards, snapshot included.
	_, err = svc.Get(ctx, view.AttemptID, "u1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	_, err = store.LoadSnapshot(ctx, view.AttemptID)
	assert.ErrorIs(t, err, session.ErrSnapshotNotFound)
}

func TestAttemptService_WritingSubmitRequiresBothTasks(t *testing.T) {
	svc, fb, store, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillWriting, AssignmentID: "w1"}, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.SaveAnswer(ctx, view.AttemptID, "u1", &SaveAnswerRequest{
		QuestionID: attempt.WritingTaskOneKey,
		Answer:     "first essay",
	}))

	_, err = svc.Submit(ctx, view.AttemptID, "u1")
	var incomplete *attempt.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Empty(t, fb.writing)

	view, err = svc.Get(ctx, view.AttemptID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.WordCounts[attempt.WritingTaskOneKey])
	assert.Equal(t, 0, view.WordCounts[attempt.WritingTaskTwoKey])

	require.NoError(t, svc.SaveAnswer(ctx, view.AttemptID, "u1", &SaveAnswerRequest{
		QuestionID: attempt.WritingTaskTwoKey,
		Answer:     "second essay",
	}))

	outcome, err := svc.Submit(ctx, view.AttemptID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/assignment/submissions", outcome.Route)

	queued, err := store.ConsumeGradingQueued(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, queued, "writing submit must queue the grading notice")
}

func TestAttemptService_SpeakingRecordings(t *testing.T) {
	svc, fb, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillSpeaking, AssignmentID: "sp1"}, "u1")
	require.NoError(t, err)

	clip := func(name string) *recorder.Clip {
		return &recorder.Clip{Name: name, MIME: recorder.PreferredMIME, Data: []byte("a")}
	}

	require.NoError(t, svc.AttachRecording(ctx, view.AttemptID, "u1", 1, clip("part1.webm")))
	require.NoError(t, svc.AttachRecording(ctx, view.AttemptID, "u1", 2, clip("part2.webm")))

	err = svc.AttachRecording(ctx, view.AttemptID, "u1", 4, clip("bad.webm"))
	assert.ErrorIs(t, err, ErrInvalidSpeakingPart)

	_, err = svc.Submit(ctx, view.AttemptID, "u1")
	var incomplete *attempt.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Missing[0], "part 3")

	require.NoError(t, svc.AttachRecording(ctx, view.AttemptID, "u1", 3, clip("part3.webm")))
	_, err = svc.Submit(ctx, view.AttemptID, "u1")
	require.NoError(t, err)
	require.Len(t, fb.speaking, 1)
	assert.NotNil(t, fb.speaking[0].AudioThree)
}

func TestAttemptService_RecordingOnReadingRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)

	err = svc.AttachRecording(ctx, view.AttemptID, "u1", 1, &recorder.Clip{Data: []byte("a")})
	assert.True(t, IsBusinessRule(err), "expected a business rule violation, got %v", err)
	var bre *BusinessRuleError
	require.ErrorAs(t, err, &bre)
	assert.Equal(t, "recording_speaking_only", bre.Rule)
	assert.Equal(t, "reading", bre.Context["skill"])
}

func TestAttemptService_AbandonPublishesEvent(t *testing.T) {
	svc, _, _, pub := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillReading, AssignmentID: "r1"}, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.Abandon(ctx, view.AttemptID, "u1"))

	_, err = svc.Get(ctx, view.AttemptID, "u1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	var abandoned bool
	for _, e := range pub.GetPublishedEvents() {
		if e.Type == events.EventAttemptAbandoned {
			abandoned = true
		}
	}
	assert.True(t, abandoned)
}

func TestAttemptService_Navigation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.Start(ctx, &StartAttemptRequest{Skill: models.SkillSpeaking, AssignmentID: "sp1"}, "u1")
	require.NoError(t, err)

	moved, err := svc.AdvanceSection(ctx, view.AttemptID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, moved.ActiveSection)

	moved, err = svc.JumpToSection(ctx, view.AttemptID, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.ActiveSection)

	moved, err = svc.FocusQuestion(ctx, view.AttemptID, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.ActiveSection)
}
