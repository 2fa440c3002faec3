package models

import "time"

type Skill string

const (
	SkillReading   Skill = "reading"
	SkillListening Skill = "listening"
	SkillWriting   Skill = "writing"
	SkillSpeaking  Skill = "speaking"
)

func (s Skill) Valid() bool {
	switch s {
	case SkillReading, SkillListening, SkillWriting, SkillSpeaking:
		return true
	}
	return false
}

// AutoGraded reports whether submissions for this skill are graded by the
// backend immediately. Writing and speaking go through a manual/AI grading
// queue and may stay pending.
func (s Skill) AutoGraded() bool {
	return s == SkillReading || s == SkillListening
}

type InteractionKind string

const (
	InteractionGapFill        InteractionKind = "gap_fill_template"
	InteractionMultipleChoice InteractionKind = "multiple_choice_single"
	InteractionTrueFalseNG    InteractionKind = "true_false_not_given"
	InteractionMatching       InteractionKind = "matching"
	InteractionShortAnswer    InteractionKind = "short_answer"
	InteractionFreeText       InteractionKind = "free_text"
)

func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionGapFill, InteractionMultipleChoice, InteractionTrueFalseNG,
		InteractionMatching, InteractionShortAnswer, InteractionFreeText:
		return true
	}
	return false
}

// Assignment is a gradable unit of work loaded from the content backend.
// Reading/listening assignments carry Sections, speaking carries Parts,
// writing carries the two task prompts. Immutable once loaded.
type Assignment struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Skill           Skill  `json:"skill"`
	DurationMinutes int    `json:"duration_minutes"`

	// Reading / listening
	Sections []Section `json:"sections,omitempty"`

	// Speaking
	Parts []Part `json:"parts,omitempty"`

	// Writing
	TaskOne  string `json:"taskone,omitempty"`
	TaskTwo  string `json:"tasktwo,omitempty"`
	ImageURL string `json:"img,omitempty"`
}

type Section struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Material       *Material       `json:"material,omitempty"`
	QuestionGroups []QuestionGroup `json:"question_groups"`
}

// Material is the section stimulus: a reading passage or a listening
// recording (with transcript revealed on the result page).
type Material struct {
	Type       string `json:"type"`
	PassageMD  string `json:"passage_md,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// QuestionGroup clusters sub-questions sharing one instruction block.
// Groups with no questions are instruction-only and carry no answers.
type QuestionGroup struct {
	ID             string     `json:"id"`
	Title          string     `json:"title,omitempty"`
	InstructionsMD string     `json:"instructions_md,omitempty"`
	Questions      []Question `json:"questions"`
}

type Question struct {
	ID       string          `json:"id"`
	PromptMD string          `json:"prompt_md"`
	Kind     InteractionKind `json:"type"`

	// Kind-specific schema. Exactly one is set for the matching kind.
	Options      []Option      `json:"options,omitempty"`
	Template     *GapTemplate  `json:"template,omitempty"`
	MatchTargets []Option      `json:"match_targets,omitempty"`
	SubQuestions []SubQuestion `json:"subquestions,omitempty"`
}

type Option struct {
	ID      string `json:"id"`
	LabelMD string `json:"label_md"`
}

// GapTemplate is the gap_fill_template stimulus: a body with
// {{blank:<id>}} markers, or an explicit blanks list.
type GapTemplate struct {
	Body   string     `json:"body,omitempty"`
	Blanks []GapBlank `json:"blanks,omitempty"`
}

type GapBlank struct {
	BlankID string `json:"blank_id"`
}

// SubQuestion is the smallest gradable unit inside a composite question.
type SubQuestion struct {
	ID        string `json:"id"`
	SubPrompt string `json:"subprompt"`
}

type Part struct {
	PartNumber int        `json:"part_number"`
	Title      string     `json:"title,omitempty"`
	Questions  []Question `json:"questions"`
}

// Questions returns all questions of a section in order, flattened over
// its groups.
func (s Section) AllQuestions() []Question {
	var out []Question
	for _, g := range s.QuestionGroups {
		out = append(out, g.Questions...)
	}
	return out
}

// QuestionIDs returns every question identifier known to the assignment,
// in presentation order. The submit payload must contain exactly these keys.
func (a *Assignment) QuestionIDs() []string {
	var ids []string
	for _, sec := range a.Sections {
		for _, q := range sec.AllQuestions() {
			ids = append(ids, q.ID)
		}
	}
	for _, p := range a.Parts {
		for _, q := range p.Questions {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// QuestionKinds maps question id to interaction kind for answer defaulting.
func (a *Assignment) QuestionKinds() map[string]InteractionKind {
	kinds := make(map[string]InteractionKind)
	for _, sec := range a.Sections {
		for _, q := range sec.AllQuestions() {
			kinds[q.ID] = q.Kind
		}
	}
	for _, p := range a.Parts {
		for _, q := range p.Questions {
			kinds[q.ID] = q.Kind
		}
	}
	return kinds
}

func (a *Assignment) TotalQuestions() int {
	return len(a.QuestionIDs())
}

// Duration returns the attempt duration, falling back to the skill
// default when the assignment does not configure one: 15 minutes for
// speaking, 60 for everything else.
func (a *Assignment) Duration() time.Duration {
	minutes := a.DurationMinutes
	if minutes <= 0 {
		if a.Skill == SkillSpeaking {
			minutes = 15
		} else {
			minutes = 60
		}
	}
	return time.Duration(minutes) * time.Minute
}
