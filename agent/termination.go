package agent

// SignalKind classifies why a run ended. Each kind implies a different
// recommended next action for the caller.
type SignalKind string

const (
	// SignalComplete means the model produced a turn with no tool calls.
	SignalComplete SignalKind = "complete"

	// SignalExplicitComplete means the completion phrase appeared in the
	// model's latest text output.
	SignalExplicitComplete SignalKind = "explicit_complete"

	// SignalExternalComplete means the caller marked the run complete.
	SignalExternalComplete SignalKind = "external_complete"

	// SignalConfidenceThreshold means verification confidence crossed the
	// configured target.
	SignalConfidenceThreshold SignalKind = "confidence_threshold"

	// SignalStagnation means the loop detector flagged repetitive or
	// failing behavior.
	SignalStagnation SignalKind = "stagnation"

	// SignalErrorBudget means too many tool errors accumulated.
	SignalErrorBudget SignalKind = "error_budget_exceeded"

	// SignalArtifactCap means the run produced more artifacts than allowed.
	SignalArtifactCap SignalKind = "artifact_cap_exceeded"

	// SignalAwaitingInput means the model explicitly requested user input.
	SignalAwaitingInput SignalKind = "awaiting_input"

	// SignalMaxIterations means the hard iteration bound was reached.
	SignalMaxIterations SignalKind = "max_iterations"
)

// Signal is a termination decision with human-readable detail.
type Signal struct {
	Kind   SignalKind
	Detail string
}

// Terminal reports whether the signal ends the run. The zero Signal does not.
func (s Signal) Terminal() bool {
	return s.Kind != ""
}

func (s Signal) String() string {
	if s.Detail == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ": " + s.Detail
}
