package risk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TriggerTable holds the danger-combination triggers: sets of symptom
// reasons that, once all present anywhere in a session, force the emergency
// tier. The table content is medical-knowledge configuration loaded from
// outside the core; the core only implements the subset-match contract.
type TriggerTable struct {
	triggers [][]string
}

// ParseTriggerTable decodes a JSON array of reason sets, e.g.
// [["fiebre alta","dolor de cabeza","rigidez de cuello"],["dolor de pecho","sudoración fría"]].
// Empty sets are rejected: an empty trigger would match every session.
func ParseTriggerTable(raw string) (TriggerTable, error) {
	var sets [][]string
	if err := json.Unmarshal([]byte(raw), &sets); err != nil {
		return TriggerTable{}, fmt.Errorf("risk: parse trigger table: %w", err)
	}
	table := TriggerTable{}
	for i, set := range sets {
		normalized := normalizeSet(set)
		if len(normalized) == 0 {
			return TriggerTable{}, fmt.Errorf("risk: trigger set %d is empty", i)
		}
		table.triggers = append(table.triggers, normalized)
	}
	return table, nil
}

// DefaultTriggerTable carries the combinations the original triage rules
// name explicitly. Deployments override it via configuration.
func DefaultTriggerTable() TriggerTable {
	return TriggerTable{triggers: [][]string{
		normalizeSet([]string{"fiebre alta", "dolor de cabeza", "rigidez de cuello"}),
		normalizeSet([]string{"dolor de pecho", "sudoración fría"}),
		normalizeSet([]string{"dolor de pecho", "dificultad para respirar"}),
		normalizeSet([]string{"dolor de pecho", "fiebre alta", "latidos rápidos"}),
		normalizeSet([]string{"fiebre alta", "convulsiones"}),
		normalizeSet([]string{"fiebre alta", "confusión"}),
		normalizeSet([]string{"dolor abdominal intenso", "vómitos persistentes"}),
	}}
}

// Len returns the number of trigger sets in the table.
func (t TriggerTable) Len() int {
	return len(t.triggers)
}

// Match reports whether any trigger set is fully contained in the given
// accumulated reasons. Order is irrelevant; comparison is normalized
// (trimmed, case-folded).
func (t TriggerTable) Match(reasons []string) bool {
	if len(reasons) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		have[normalize(r)] = struct{}{}
	}
	for _, set := range t.triggers {
		if containsAll(have, set) {
			return true
		}
	}
	return false
}

func containsAll(have map[string]struct{}, want []string) bool {
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

func normalizeSet(set []string) []string {
	var out []string
	for _, s := range set {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
