package domain

import "time"

// Target identifies which interpreter handled (or should handle) a turn.
type Target string

const (
	TargetTriage    Target = "triage"
	TargetDoctors   Target = "doctors"
	TargetWorkshops Target = "workshops"
)

// Valid reports whether t is one of the known interpreter targets.
func (t Target) Valid() bool {
	switch t {
	case TargetTriage, TargetDoctors, TargetWorkshops:
		return true
	}
	return false
}

// Turn is one processed user message plus its structured extraction.
// Turns are immutable once recorded.
type Turn struct {
	Message string            `json:"message"`
	Target  Target            `json:"target"`
	Fields  map[string]string `json:"fields,omitempty"`
	// Reasons are the triage danger reasons extracted for this turn.
	// Empty for doctors/workshops turns.
	Reasons []string `json:"reasons,omitempty"`
	// Tier is the urgency layer (1-4) in effect after this turn's
	// escalation. Zero for non-triage turns and when no tier could be
	// established.
	Tier            int    `json:"tier,omitempty"`
	PendingQuestion string `json:"pendingQuestion,omitempty"`
}

// Session is the TTL-bounded record of recent turns for one user.
type Session struct {
	UserID    string
	Turns     []Turn
	ExpiresAt time.Time
}

// Expired reports whether the session's TTL has passed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// LastPendingQuestion returns the question the system most recently asked
// the user for the given target, or "" if none is outstanding.
func (s *Session) LastPendingQuestion(target Target) string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Target == target {
			return s.Turns[i].PendingQuestion
		}
	}
	return ""
}
