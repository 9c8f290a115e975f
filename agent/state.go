package agent

import (
	"time"

	"github.com/strandworks/strand"
)

// IterationState is the per-run bookkeeping the loop threads through its
// iterations. All counters live here rather than on the Loop so that
// independent runs never share mutable state; the caller receives the
// final state at termination.
type IterationState struct {
	// Iteration is the current 1-indexed loop iteration.
	Iteration int

	// History is the conversation so far, oldest turn first.
	History []strand.Turn

	// Artifacts names the resources the run has produced or modified.
	Artifacts []string

	// Errors counts tool error results across all iterations.
	Errors int

	// ModifiedTargets maps each touched target to the time of its most
	// recent modification.
	ModifiedTargets map[string]time.Time

	// Confidences holds verification confidences in recording order.
	Confidences []float64

	// Usage accumulates token usage across all model calls.
	Usage strand.Usage
}

func newIterationState(turns []strand.Turn) *IterationState {
	history := make([]strand.Turn, len(turns))
	copy(history, turns)
	return &IterationState{
		History:         history,
		ModifiedTargets: make(map[string]time.Time),
	}
}

func (s *IterationState) append(turn strand.Turn) {
	s.History = append(s.History, turn)
}

func (s *IterationState) recordTarget(target string) {
	if target == "" {
		return
	}
	if _, seen := s.ModifiedTargets[target]; !seen {
		s.Artifacts = append(s.Artifacts, target)
	}
	s.ModifiedTargets[target] = time.Now()
}

// averageConfidence returns the mean of the last k confidences, or -1 when
// fewer than k have been recorded.
func (s *IterationState) averageConfidence(k int) float64 {
	if k <= 0 || len(s.Confidences) < k {
		return -1
	}
	sum := 0.0
	for _, c := range s.Confidences[len(s.Confidences)-k:] {
		sum += c
	}
	return sum / float64(k)
}
