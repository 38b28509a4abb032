package conversation

import (
	"strings"

	"intake-router/internal/domain"
)

// Accumulate merges the prior accumulated context with the current turn's
// freshly extracted fields into the effective fact set for this cycle.
//
// Merge policy, per field of the target's recognized schema:
//   - a non-empty current value overrides the prior one (an explicit
//     correction when the values differ, a restatement otherwise) with
//     provenance SourceCurrent;
//   - an absent current value retains the prior value unchanged;
//   - a field absent from both inputs stays absent; the accumulator never
//     fabricates values, "unknown" is a valid terminal state the caller
//     resolves by asking the user.
//
// Current-turn reasons are appended to the prior union, deduplicated,
// insertion order preserved. The result depends only on the two inputs.
func Accumulate(prior domain.AccumulatedContext, current domain.ExtractionResult) domain.AccumulatedContext {
	out := domain.NewAccumulatedContext(prior.Target)
	for k, v := range prior.Fields {
		out.Fields[k] = v
	}

	for _, field := range domain.RecognizedFields(prior.Target) {
		v := strings.TrimSpace(current.Fields[field])
		if v == "" {
			continue
		}
		out.Fields[field] = domain.FieldValue{Value: v, SourceTurn: domain.SourceCurrent}
	}

	out.Reasons = mergeReasons(prior.Reasons, current.Reasons)
	return out
}

// Corrected reports whether the current extraction explicitly contradicts
// the prior value of a field, i.e. supplies a semantically distinct value
// for a field that already had one.
func Corrected(prior domain.AccumulatedContext, current domain.ExtractionResult, field string) bool {
	cur := strings.TrimSpace(current.Fields[field])
	if cur == "" || !prior.Has(field) {
		return false
	}
	return !strings.EqualFold(normalize(cur), normalize(prior.Value(field)))
}

func mergeReasons(prior, current []string) []string {
	if len(current) == 0 {
		// Preserve prior as-is, including nil, so repeated merges are
		// byte-stable.
		return prior
	}
	out := make([]string, 0, len(prior)+len(current))
	seen := make(map[string]struct{}, len(prior)+len(current))
	for _, r := range prior {
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
	for _, r := range current {
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
	return out
}

// MissingFields returns the required fields the context still lacks, in the
// order given. Used to decide requiere_mas_informacion.
func MissingFields(ctx domain.AccumulatedContext, required ...string) []string {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(ctx.Value(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
