package domain

// ExtractionResult is the structured output of one LLM extraction call.
// The core treats it as input to deterministic merge and escalation logic,
// never as authoritative session state.
type ExtractionResult struct {
	Target Target
	Fields map[string]string
	// Reasons are the danger reasons named for the current turn (triage).
	Reasons []string
	// Tier is the isolated urgency layer for the current turn; zero when
	// the extraction omitted or mangled it.
	Tier            int
	NeedsMoreInfo   bool
	PendingQuestion string
	// HandOff is the interpreter the extraction suggests continuing with
	// ("doctors", "workshops" or empty).
	HandOff string
}

// Empty reports whether the extraction carries no usable structure, the
// shape a failed upstream call degrades to.
func (r ExtractionResult) Empty() bool {
	return len(r.Fields) == 0 && len(r.Reasons) == 0 && r.Tier == 0
}
