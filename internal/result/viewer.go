package result

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// UnansweredPlaceholder is shown wherever a learner left a question blank.
const UnansweredPlaceholder = "(không trả lời)"

// Review is the assembled post-submission view: the graded result joined
// with the assignment structure it was graded against.
type Review struct {
	AssignmentID    string          `json:"assignment_id"`
	AssignmentTitle string          `json:"assignment_title"`
	Skill           models.Skill    `json:"skill"`
	SubmissionID    string          `json:"submission_id"`
	Pending         bool            `json:"pending"`
	BandScore       float64         `json:"band_score"`
	CorrectAnswers  int             `json:"correct_answers"`
	TotalQuestions  int             `json:"total_questions"`
	Feedback        string          `json:"feedback,omitempty"`
	Sections        []SectionReview `json:"sections,omitempty"`
}

type SectionReview struct {
	SectionID    string `json:"section_id"`
	SectionTitle string `json:"section_title"`
	Rows         []Row  `json:"rows"`
}

// Row is one graded sub-question rendered for display.
type Row struct {
	QuestionID      string `json:"question_id"`
	SubQuestionID   string `json:"subquestion_id,omitempty"`
	Correct         bool   `json:"correct"`
	SubmittedAnswer string `json:"submitted_answer"`
	CorrectAnswer   string `json:"correct_answer"`
}

// Viewer fetches and assembles submission reviews.
type Viewer struct {
	backend backend.Client
	logger  utils.Logger
}

func NewViewer(backendClient backend.Client, logger utils.Logger) *Viewer {
	return &Viewer{backend: backendClient, logger: logger}
}

// GetReview loads the assignment and the submission result concurrently
// and joins them. For writing and speaking a result that is still being
// graded comes back with Pending set and no rows.
func (v *Viewer) GetReview(ctx context.Context, skill models.Skill, assignmentID, submissionID string) (*Review, error) {
	var (
		assignment *models.Assignment
		res        *models.SubmissionResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := v.backend.GetAssignment(gctx, skill, assignmentID)
		if err != nil {
			return fmt.Errorf("failed to load assignment: %w", err)
		}
		assignment = a
		return nil
	})
	g.Go(func() error {
		r, err := v.backend.GetSubmissionResult(gctx, skill, submissionID)
		if err != nil {
			return fmt.Errorf("failed to load submission result: %w", err)
		}
		res = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	review := &Review{
		AssignmentID:    assignment.ID,
		AssignmentTitle: assignment.Title,
		Skill:           skill,
		SubmissionID:    res.ID,
		Feedback:        res.Feedback,
	}
	if review.SubmissionID == "" {
		review.SubmissionID = submissionID
	}

	if res.Pending() {
		review.Pending = true
		return review, nil
	}

	total := res.TotalQuestions
	if total == 0 {
		total = assignment.TotalQuestions()
	}
	review.CorrectAnswers = res.CorrectAnswers
	review.TotalQuestions = total
	if res.Score != nil {
		review.BandScore = *res.Score
	} else {
		review.BandScore = BandScore(res.CorrectAnswers, total)
	}

	for _, sec := range res.Details {
		sr := SectionReview{SectionID: sec.SectionID, SectionTitle: sec.SectionTitle}
		for _, q := range sec.Questions {
			for _, sq := range q.SubQuestions {
				sr.Rows = append(sr.Rows, Row{
					QuestionID:      q.QuestionID,
					SubQuestionID:   sq.SubQuestionID,
					Correct:         sq.Correct,
					SubmittedAnswer: FormatAnswer(sq.SubmittedAnswer),
					CorrectAnswer:   FormatAnswer(sq.CorrectAnswer),
				})
			}
		}
		review.Sections = append(review.Sections, sr)
	}
	return review, nil
}

// BandScore converts a raw correct count into the 0..9 band scale in half
// band steps. A zero or negative total is treated as one so the score is
// always defined.
func BandScore(correct, total int) float64 {
	if total < 1 {
		total = 1
	}
	raw := float64(correct) / float64(total) * 9
	band := math.Round(raw*2) / 2
	if band < 0 {
		return 0
	}
	if band > 9 {
		return 9
	}
	return band
}

// FormatAnswer renders a graded answer value for display. Blank input of
// any shape becomes the unanswered placeholder.
func FormatAnswer(v any) string {
	switch val := v.(type) {
	case nil:
		return UnansweredPlaceholder
	case string:
		if strings.TrimSpace(val) == "" {
			return UnansweredPlaceholder
		}
		return val
	case []any:
		if len(val) == 0 {
			return UnansweredPlaceholder
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatAnswer(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if len(val) == 0 {
			return UnansweredPlaceholder
		}
		// Structured answers show their values, not the wire shape:
		// {"choice":"B"} reads as B. Keys sorted for a stable order.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, FormatAnswer(val[k]))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.2f", val), "0"), ".0")
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
