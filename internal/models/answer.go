package models

type GapFillAnswer struct {
	Blanks map[string]string `json:"blanks"` // blankId -> text
}

type MultipleChoiceAnswer struct {
	Choice string `json:"choice"` // selected option id
}

type TrueFalseNotGivenAnswer struct {
	Value string `json:"value"` // "true" | "false" | "not_given"
}

type MatchingAnswer struct {
	Pairs map[string]string `json:"pairs"` // leftId -> rightId
}

type ShortAnswer struct {
	Text string `json:"text"`
}

type FreeTextAnswer struct {
	Text string `json:"text"`
}

// EmptyAnswerValue is the explicit default submitted for an unanswered
// question, so grading can distinguish "skipped" from "not rendered".
// Text kinds default to the empty string, structured kinds to an empty
// object, matching what the backend expects on the wire.
func EmptyAnswerValue(kind InteractionKind) any {
	switch kind {
	case InteractionShortAnswer, InteractionFreeText:
		return ""
	default:
		return map[string]any{}
	}
}
