package attempt

import (
	"reflect"
	"testing"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

func TestAnswerStore_DefaultsByKind(t *testing.T) {
	store := NewAnswerStore(map[string]models.InteractionKind{
		"q1": models.InteractionShortAnswer,
		"q2": models.InteractionFreeText,
		"q3": models.InteractionGapFill,
		"q4": models.InteractionMatching,
	})

	if got := store.Get("q1"); got != "" {
		t.Errorf("short_answer default = %v, want empty string", got)
	}
	if got := store.Get("q2"); got != "" {
		t.Errorf("free_text default = %v, want empty string", got)
	}
	for _, id := range []string{"q3", "q4"} {
		got, ok := store.Get(id).(map[string]any)
		if !ok || len(got) != 0 {
			t.Errorf("%s default = %v, want empty object", id, store.Get(id))
		}
	}
}

func TestAnswerStore_UpdateIsIsolated(t *testing.T) {
	store := NewAnswerStore(map[string]models.InteractionKind{
		"q1": models.InteractionMultipleChoice,
		"q2": models.InteractionMultipleChoice,
	})

	store.Update("q1", map[string]any{"choice": "B"})

	want := map[string]any{"choice": "B"}
	if got := store.Get("q1"); !reflect.DeepEqual(got, want) {
		t.Errorf("q1 = %v, want %v", got, want)
	}
	// The other question keeps its default.
	if got, ok := store.Get("q2").(map[string]any); !ok || len(got) != 0 {
		t.Errorf("q2 = %v, want empty object", store.Get("q2"))
	}

	store.Update("q1", map[string]any{"choice": "C"})
	if got := store.Get("q1").(map[string]any)["choice"]; got != "C" {
		t.Errorf("q1 choice after overwrite = %v, want C", got)
	}
}

func TestAnswerStore_AnsweredCount(t *testing.T) {
	store := NewAnswerStore(map[string]models.InteractionKind{
		"q1": models.InteractionShortAnswer,
		"q2": models.InteractionShortAnswer,
	})

	if store.AnsweredCount() != 0 {
		t.Fatalf("fresh store AnsweredCount = %d, want 0", store.AnsweredCount())
	}

	store.Update("q1", "abc")
	if !store.Answered("q1") || store.Answered("q2") {
		t.Error("answered flags wrong after single update")
	}
	if store.AnsweredCount() != 1 {
		t.Errorf("AnsweredCount = %d, want 1", store.AnsweredCount())
	}
}

func TestAnswerStore_SnapshotRestore(t *testing.T) {
	store := NewAnswerStore(map[string]models.InteractionKind{
		"q1": models.InteractionShortAnswer,
	})
	store.Update("q1", "hello")

	snap := store.Snapshot()

	restored := NewAnswerStore(map[string]models.InteractionKind{
		"q1": models.InteractionShortAnswer,
	})
	restored.Restore(snap)

	if got := restored.Text("q1"); got != "hello" {
		t.Errorf("restored q1 = %q, want hello", got)
	}
}

func TestAnswerStore_Text(t *testing.T) {
	store := NewAnswerStore(nil)
	store.Update("essay", "some text")
	store.Update("obj", map[string]any{"choice": "A"})

	if got := store.Text("essay"); got != "some text" {
		t.Errorf("Text(essay) = %q", got)
	}
	if got := store.Text("obj"); got != "" {
		t.Errorf("Text on non-string value = %q, want empty", got)
	}
	if got := store.Text("missing"); got != "" {
		t.Errorf("Text on missing key = %q, want empty", got)
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},
		{"The quick brown fox", 4},
		{"  leading and   trailing  ", 3},
		{"line\nbreaks\ncount\ttoo", 4},
	}
	for _, tc := range cases {
		if got := WordCount(tc.text); got != tc.want {
			t.Errorf("WordCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
