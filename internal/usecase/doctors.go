package usecase

import (
	"context"

	"intake-router/internal/domain"
)

// Schedules are fetched for at most this many matched doctors per answer.
const maxScheduleLookups = 5

const askEspecialidad = "¿Qué especialidad médica necesitas, o qué síntomas tienes?"

// DoctorsResult is the appointment interpreter's answer: the effective
// search criteria and what the directory returned for them.
type DoctorsResult struct {
	Criteria  map[string]string
	Doctors   []domain.Doctor
	Schedules []domain.Schedule
}

// interpretDoctors searches the directory with the merged criteria. Without
// a specialty there is nothing to query; the returned question asks for it.
func (s *RouteService) interpretDoctors(ctx context.Context, merged domain.AccumulatedContext) (*DoctorsResult, string, error) {
	out := &DoctorsResult{Criteria: merged.FieldMap()}

	criteria := domain.DoctorCriteria{
		Especialidad: merged.Value("especialidad"),
		Modalidad:    merged.Value("modalidad"),
		Departamento: merged.Value("departamento"),
		Distrito:     merged.Value("distrito"),
		Genero:       merged.Value("genero_preferido"),
		Idioma:       merged.Value("idioma_preferido"),
		DiaSemana:    merged.Value("dia_semana"),
	}
	if criteria.Especialidad == "" {
		return out, askEspecialidad, nil
	}

	doctors, err := s.directory.FindDoctors(ctx, criteria)
	if err != nil {
		return nil, "", newError(ErrorInternal, "doctors_query_error", err)
	}
	out.Doctors = doctors
	if len(doctors) == 0 {
		return out, "", nil
	}

	ids := make([]string, 0, maxScheduleLookups)
	for _, d := range doctors {
		if len(ids) == maxScheduleLookups {
			break
		}
		ids = append(ids, d.ID)
	}
	schedules, err := s.directory.FindSchedules(ctx, ids, criteria.DiaSemana)
	if err != nil {
		// Doctors without availability rows are still a useful answer.
		s.logger.Warn("schedule lookup failed, answering without availability", "err", err)
		return out, "", nil
	}
	out.Schedules = schedules
	return out, "", nil
}
