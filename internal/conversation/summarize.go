package conversation

import (
	"strings"

	"intake-router/internal/domain"
)

// Summarize renders a session's stored turns into the accumulated context
// for one interpreter target. For every recognized field it walks the turns
// newest to oldest and keeps the first non-empty value seen, so the most
// recent mention wins. Triage danger reasons are collected as an ordered,
// deduplicated union across all triage turns (oldest first) and are never
// dropped by later turns that omit them.
//
// Triage turns feed both the triage and the doctors context: a specialty
// suggested during triage is visible to the doctors interpreter under the
// "especialidad" criterion. Workshop turns are isolated.
//
// Summarize is a pure function over the session snapshot; calling it twice
// without intervening writes yields identical results.
func Summarize(session *domain.Session, target domain.Target) domain.AccumulatedContext {
	out := domain.NewAccumulatedContext(target)
	if session == nil {
		return out
	}

	for _, field := range domain.RecognizedFields(target) {
		for i := len(session.Turns) - 1; i >= 0; i-- {
			v, ok := turnFieldValue(session.Turns[i], target, field)
			if !ok {
				continue
			}
			out.Fields[field] = domain.FieldValue{Value: v, SourceTurn: i}
			break
		}
	}

	if target == domain.TargetTriage {
		out.Reasons = unionReasons(session.Turns)
	}
	return out
}

// turnFieldValue returns the value a stored turn contributes for a field of
// the given target context, if any.
func turnFieldValue(turn domain.Turn, target domain.Target, field string) (string, bool) {
	switch {
	case turn.Target == target:
		if v := strings.TrimSpace(turn.Fields[field]); v != "" {
			return v, true
		}
	case turn.Target == domain.TargetTriage && target == domain.TargetDoctors && field == "especialidad":
		if v := strings.TrimSpace(turn.Fields["especialidad_sugerida"]); v != "" {
			return v, true
		}
	}
	return "", false
}

// unionReasons returns the ordered union of danger reasons across all triage
// turns, oldest first, deduplicated case-insensitively.
func unionReasons(turns []domain.Turn) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range turns {
		if t.Target != domain.TargetTriage {
			continue
		}
		for _, r := range t.Reasons {
			key := normalize(r)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
