package usecase

import (
	"intake-router/internal/domain"
	"intake-router/internal/risk"
)

// TriageResult is the triage interpreter's answer for one turn. Capa is the
// session's escalated urgency layer, never the isolated per-turn value.
type TriageResult struct {
	Capa                 int
	Razones              []string
	EspecialidadSugerida string
	TallerSugerido       string
	AccionRecomendada    string
	DerivarA             string
	Advertencia          string
}

// interpretTriage folds the turn's extraction into the session risk state
// and renders the escalated answer. Suggested specialty and workshop come
// from the merged context, so a suggestion made turns ago survives silence.
func (s *RouteService) interpretTriage(session *domain.Session, merged domain.AccumulatedContext, result domain.ExtractionResult) TriageResult {
	state := s.machine.Apply(risk.FromSession(session), result)
	capa := state.Reported()

	// The model's recommended action only stands when it matches the tier
	// actually reported; escalation re-derives it.
	accion := result.Fields["accion_recomendada"]
	if accion == "" || result.Tier != capa {
		accion = accionForTier(capa)
	}

	return TriageResult{
		Capa:                 capa,
		Razones:              state.Reasons,
		EspecialidadSugerida: merged.Value("especialidad_sugerida"),
		TallerSugerido:       merged.Value("taller_sugerido"),
		AccionRecomendada:    accion,
		DerivarA:             result.HandOff,
		Advertencia:          Advertencia,
	}
}

func accionForTier(capa int) string {
	switch capa {
	case domain.TierVirtual:
		return "contactar_medico_virtual"
	case domain.TierHomeVisit:
		return "solicitar_medico_a_domicilio"
	case domain.TierInPerson:
		return "consulta_presencial"
	case domain.TierEmergency:
		return "llamar_emergencias"
	}
	return ""
}
