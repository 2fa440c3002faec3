package models

const ResultStatusPending = "pending"

// ObjectiveSubmission is the reading/listening submit payload. Every
// question in the assignment contributes exactly one answer entry.
type ObjectiveSubmission struct {
	AssignmentID   string           `json:"assignment_id" validate:"required"`
	SubmittedBy    string           `json:"submitted_by" validate:"required"`
	SectionAnswers []SectionAnswers `json:"section_answers" validate:"required,min=1"`
}

type SectionAnswers struct {
	SectionID string           `json:"section_id"`
	Answers   []QuestionAnswer `json:"answers"`
}

type QuestionAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     any    `json:"answer"`
}

func (s *ObjectiveSubmission) AnswerCount() int {
	n := 0
	for _, sec := range s.SectionAnswers {
		n += len(sec.Answers)
	}
	return n
}

// WritingSubmission is the writing submit payload. Both contents must be
// non-blank; the gate runs before any network call.
type WritingSubmission struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	ContentOne   string `json:"contentOne"`
	ContentTwo   string `json:"contentTwo"`
}

// SubmissionRecord is the backend's acknowledgement of a submission.
type SubmissionRecord struct {
	ID string `json:"id"`
}

// SubmissionResult is a graded (or pending) submission outcome.
type SubmissionResult struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`

	// Writing/speaking: band score assigned by the grader, absent while
	// the result is pending.
	Score    *float64 `json:"score,omitempty"`
	Feedback string   `json:"feedback,omitempty"`

	// Reading/listening: auto-graded breakdown.
	CorrectAnswers   int             `json:"correct_answers"`
	IncorrectAnswers int             `json:"incorrect_answers"`
	TotalQuestions   int             `json:"total_questions"`
	Percentage       float64         `json:"percentage"`
	Details          []SectionResult `json:"details,omitempty"`
}

func (r *SubmissionResult) Pending() bool {
	return r.Status == ResultStatusPending || (r.Score == nil && r.TotalQuestions == 0)
}

type SectionResult struct {
	SectionID    string           `json:"section_id,omitempty"`
	SectionTitle string           `json:"section_title,omitempty"`
	Questions    []QuestionResult `json:"questions"`
}

type QuestionResult struct {
	QuestionID   string              `json:"question_id,omitempty"`
	SubQuestions []SubQuestionResult `json:"subquestions"`
}

// SubQuestionResult pairs what the learner submitted with the revealed
// correct answer for one gradable unit.
type SubQuestionResult struct {
	SubQuestionID   string `json:"subquestion_id,omitempty"`
	Correct         bool   `json:"correct"`
	SubmittedAnswer any    `json:"submitted_answer"`
	CorrectAnswer   any    `json:"correct_answer"`
}

// AssignmentOverview is one row of an assignment listing.
type AssignmentOverview struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Skill Skill  `json:"skill"`
}

// SubmissionOverview is one row of the "my submissions" listing.
type SubmissionOverview struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignment_id"`
	Skill        Skill    `json:"skill"`
	Status       string   `json:"status,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	SubmittedAt  string   `json:"submitted_at,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}
