package domain

// Urgency tiers. TierEmergency is terminal for a session: once reached the
// reported tier never drops until the session expires.
const (
	TierNone      = 0 // no tier extracted
	TierVirtual   = 1
	TierHomeVisit = 2
	TierInPerson  = 3
	TierEmergency = 4
)

// RiskState is the session's urgency high-water mark plus the accumulated
// danger reasons that contributed to it. Derived from triage turns, never
// persisted on its own.
type RiskState struct {
	HighWaterMark int
	Reasons       []string
}

// Reported returns the tier to surface to the user. A session never
// de-escalates, so the reported tier is the high-water mark, floored at
// TierVirtual once any triage turn exists.
func (s RiskState) Reported() int {
	if s.HighWaterMark < TierVirtual {
		return TierVirtual
	}
	return s.HighWaterMark
}
