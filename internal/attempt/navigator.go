package attempt

import (
	"sync"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

// FocusObserver is notified after each focus change so the presentation
// layer can scroll the focused question into view. Observers are side
// effects only; they never mutate answer state.
type FocusObserver func(sectionIndex, globalIndex int)

// Navigator tracks which section (or speaking part) is visible and which
// sub-question is focused within it. Indices are 0-based; the global index
// runs over all sub-questions in presentation order.
type Navigator struct {
	mu       sync.Mutex
	counts   []int // sub-questions per section
	starts   []int // global index of each section's first sub-question
	active   int
	focus    int
	observer FocusObserver
}

func NewNavigator(a *models.Assignment, observer FocusObserver) *Navigator {
	var counts []int
	if len(a.Parts) > 0 {
		for _, p := range a.Parts {
			counts = append(counts, len(p.Questions))
		}
	} else {
		for _, sec := range a.Sections {
			counts = append(counts, len(sec.AllQuestions()))
		}
	}

	starts := make([]int, len(counts))
	total := 0
	for i, n := range counts {
		starts[i] = total
		total += n
	}

	return &Navigator{
		counts:   counts,
		starts:   starts,
		observer: observer,
	}
}

// JumpTo makes section i active and focuses the first sub-question
// belonging to it. Instruction-only sections with zero sub-questions are
// skipped forward when computing the focus target.
func (n *Navigator) JumpTo(i int) {
	n.mu.Lock()
	if i < 0 || i >= len(n.counts) {
		n.mu.Unlock()
		return
	}
	n.active = i
	n.focus = n.firstFocusable(i)
	section, focus := n.active, n.focus
	n.mu.Unlock()

	n.notify(section, focus)
}

// Advance moves to the next section; a no-op on the last one.
func (n *Navigator) Advance() {
	n.mu.Lock()
	next := n.active + 1
	n.mu.Unlock()
	if next < len(n.counts) {
		n.JumpTo(next)
	}
}

// Focus selects a sub-question by global index (sidebar selection) and
// recomputes the active section to the one containing it.
func (n *Navigator) Focus(globalIndex int) {
	n.mu.Lock()
	total := 0
	for _, c := range n.counts {
		total += c
	}
	if globalIndex < 0 || globalIndex >= total {
		n.mu.Unlock()
		return
	}
	n.focus = globalIndex
	for i := len(n.counts) - 1; i >= 0; i-- {
		if n.counts[i] > 0 && n.starts[i] <= globalIndex {
			n.active = i
			break
		}
	}
	section, focus := n.active, n.focus
	n.mu.Unlock()

	n.notify(section, focus)
}

// firstFocusable returns the global index of the first sub-question at or
// after section i. When section i and everything after it are
// instruction-only, the focus stays where it was. Callers hold the lock.
func (n *Navigator) firstFocusable(i int) int {
	for j := i; j < len(n.counts); j++ {
		if n.counts[j] > 0 {
			return n.starts[j]
		}
	}
	return n.focus
}

func (n *Navigator) notify(sectionIndex, globalIndex int) {
	if n.observer != nil {
		n.observer(sectionIndex, globalIndex)
	}
}

func (n *Navigator) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *Navigator) FocusIndex() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focus
}

func (n *Navigator) SectionCount() int {
	return len(n.counts)
}
