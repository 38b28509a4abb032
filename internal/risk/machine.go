// Package risk enforces the monotonic urgency policy for triage sessions.
// The LLM's per-turn tier is treated as input to a deterministic function,
// never as the authority: accumulated symptoms can only escalate urgency,
// and a previously confirmed danger signal is never silently lost.
package risk

import (
	"intake-router/internal/domain"
)

// Machine applies the escalation rules against a session-derived RiskState.
// It is a pure function holder: all state lives in the snapshot passed in,
// so the machine itself is safe to share.
type Machine struct {
	triggers TriggerTable
}

// NewMachine creates a Machine with the given trigger table.
func NewMachine(triggers TriggerTable) *Machine {
	return &Machine{triggers: triggers}
}

// FromSession rebuilds the risk state from a session snapshot: the maximum
// tier across its triage turns and the ordered union of their reasons. A
// nil session yields the zero state.
func FromSession(session *domain.Session) domain.RiskState {
	var state domain.RiskState
	if session == nil {
		return state
	}
	seen := make(map[string]struct{})
	for _, turn := range session.Turns {
		if turn.Target != domain.TargetTriage {
			continue
		}
		if turn.Tier > state.HighWaterMark && turn.Tier <= domain.TierEmergency {
			state.HighWaterMark = turn.Tier
		}
		for _, r := range turn.Reasons {
			key := normalize(r)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			state.Reasons = append(state.Reasons, r)
		}
	}
	return state
}

// Apply folds the current turn's extraction into the risk state.
//
// Rules, in order:
//   - the new reasons join the accumulated set (ordered union);
//   - high_water_mark' = max(high_water_mark, t_new); a missing or
//     out-of-range tier keeps the existing mark unchanged rather than
//     resetting, so ambiguity never reads as reassurance;
//   - if the accumulated reason set contains any danger-combination
//     trigger, the mark is forced to the emergency tier regardless of the
//     isolated extraction;
//   - the emergency tier is terminal: max() never lets it drop for the
//     rest of the session.
//
// The tier to report to the user is Reported() on the returned state, not
// the possibly lower t_new.
func (m *Machine) Apply(state domain.RiskState, result domain.ExtractionResult) domain.RiskState {
	next := domain.RiskState{
		HighWaterMark: state.HighWaterMark,
		Reasons:       unionReasons(state.Reasons, result.Reasons),
	}

	if result.Tier >= domain.TierVirtual && result.Tier <= domain.TierEmergency && result.Tier > next.HighWaterMark {
		next.HighWaterMark = result.Tier
	}

	if m.triggers.Match(next.Reasons) {
		next.HighWaterMark = domain.TierEmergency
	}
	return next
}

func unionReasons(prior, current []string) []string {
	if len(current) == 0 {
		return prior
	}
	out := make([]string, 0, len(prior)+len(current))
	seen := make(map[string]struct{}, len(prior)+len(current))
	for _, group := range [][]string{prior, current} {
		for _, r := range group {
			key := normalize(r)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
