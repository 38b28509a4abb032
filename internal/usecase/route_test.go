package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"intake-router/internal/domain"
	"intake-router/internal/risk"
)

type mockRecorder struct {
	session      *domain.Session
	recordErr    error
	recordedUser string
	recorded     []domain.Turn
}

func (m *mockRecorder) Load(_ context.Context, _ string) *domain.Session {
	return m.session
}

func (m *mockRecorder) Record(_ context.Context, userID string, turn domain.Turn) error {
	m.recordedUser = userID
	m.recorded = append(m.recorded, turn)
	return m.recordErr
}

type llmResponse struct {
	text string
	err  error
}

type mockLLM struct {
	responses  []llmResponse
	callCount  int
	lastSystem string
	lastUser   string
}

func (m *mockLLM) Invoke(_ context.Context, system, user string) (string, error) {
	m.lastSystem = system
	m.lastUser = user
	if len(m.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := m.callCount
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.callCount++
	return m.responses[idx].text, m.responses[idx].err
}

type mockDirectory struct {
	doctors      []domain.Doctor
	doctorsErr   error
	schedules    []domain.Schedule
	schedulesErr error
	lastCriteria domain.DoctorCriteria
	lastIDs      []string
	lastDia      string
	findCalls    int
}

func (m *mockDirectory) FindDoctors(_ context.Context, criteria domain.DoctorCriteria) ([]domain.Doctor, error) {
	m.findCalls++
	m.lastCriteria = criteria
	return m.doctors, m.doctorsErr
}

func (m *mockDirectory) FindSchedules(_ context.Context, doctorIDs []string, diaSemana string) ([]domain.Schedule, error) {
	m.lastIDs = doctorIDs
	m.lastDia = diaSemana
	return m.schedules, m.schedulesErr
}

type mockCatalog struct {
	workshops   []domain.Workshop
	err         error
	lastFilters domain.WorkshopFilters
}

func (m *mockCatalog) Search(_ context.Context, filters domain.WorkshopFilters) ([]domain.Workshop, error) {
	m.lastFilters = filters
	return m.workshops, m.err
}

type mockRetriever struct {
	docs      []domain.RAGDocument
	err       error
	lastQuery string
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, _ int) ([]domain.RAGDocument, error) {
	m.lastQuery = query
	return m.docs, m.err
}

type serviceDeps struct {
	recorder  *mockRecorder
	llm       *mockLLM
	directory *mockDirectory
	catalog   *mockCatalog
	retriever *mockRetriever
}

func newTestService(t *testing.T, deps serviceDeps) *RouteService {
	t.Helper()
	if deps.recorder == nil {
		deps.recorder = &mockRecorder{}
	}
	if deps.llm == nil {
		deps.llm = &mockLLM{}
	}
	if deps.directory == nil {
		deps.directory = &mockDirectory{}
	}
	if deps.catalog == nil {
		deps.catalog = &mockCatalog{}
	}
	var retriever Retriever
	if deps.retriever != nil {
		retriever = deps.retriever
	}
	s, err := NewRouteService(deps.recorder, deps.llm, deps.directory, deps.catalog, retriever,
		risk.NewMachine(risk.DefaultTriggerTable()), 0)
	require.NoError(t, err)
	return s
}

func triageJSON(capa int, razones ...string) string {
	var quoted []string
	for _, r := range razones {
		quoted = append(quoted, `"`+r+`"`)
	}
	return fmt.Sprintf(`{"capa":%d,"razones":[%s]}`, capa, strings.Join(quoted, ","))
}

func TestRoute_InputValidation(t *testing.T) {
	s := newTestService(t, serviceDeps{})

	_, err := s.Route(context.Background(), RouteInput{UserID: " ", Message: "hola", Target: domain.TargetTriage})
	requireCode(t, err, ErrorInvalidInput)

	_, err = s.Route(context.Background(), RouteInput{UserID: "u1", Message: "  ", Target: domain.TargetTriage})
	requireCode(t, err, ErrorInvalidInput)

	_, err = s.Route(context.Background(), RouteInput{UserID: "u1", Message: strings.Repeat("a", 1001), Target: domain.TargetTriage})
	requireCode(t, err, ErrorInvalidInput)

	_, err = s.Route(context.Background(), RouteInput{UserID: "u1", Message: "hola", Target: "billing"})
	requireCode(t, err, ErrorInvalidInput)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
}

func TestRoute_TriageHappyPath(t *testing.T) {
	recorder := &mockRecorder{}
	llm := &mockLLM{responses: []llmResponse{{text: `{
		"capa": 2,
		"razones": ["fiebre alta", "dolor muscular"],
		"especialidad_sugerida": "Medicina General",
		"requiere_mas_informacion": false
	}`}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "tengo fiebre y me duele el cuerpo", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.Equal(t, domain.TargetTriage, out.Target)
	require.NotNil(t, out.Triage)
	require.Equal(t, 2, out.Triage.Capa)
	require.Equal(t, []string{"fiebre alta", "dolor muscular"}, out.Triage.Razones)
	require.Equal(t, "Medicina General", out.Triage.EspecialidadSugerida)
	require.Equal(t, "solicitar_medico_a_domicilio", out.Triage.AccionRecomendada)
	require.Equal(t, Advertencia, out.Triage.Advertencia)

	require.Equal(t, "u1", recorder.recordedUser)
	require.Len(t, recorder.recorded, 1)
	turn := recorder.recorded[0]
	require.Equal(t, domain.TargetTriage, turn.Target)
	require.Equal(t, 2, turn.Tier)
	require.Equal(t, "Medicina General", turn.Fields["especialidad_sugerida"])
}

func TestRoute_TriageNeverDeescalates(t *testing.T) {
	recorder := &mockRecorder{session: &domain.Session{UserID: "u1", Turns: []domain.Turn{
		{Message: "no puedo respirar bien", Target: domain.TargetTriage, Reasons: []string{"dificultad para respirar"}, Tier: 3},
	}}}
	llm := &mockLLM{responses: []llmResponse{{text: triageJSON(1, "tos leve")}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "ya solo tengo tos", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.Equal(t, 3, out.Triage.Capa)
	require.Equal(t, "consulta_presencial", out.Triage.AccionRecomendada)
	require.Equal(t, 3, recorder.recorded[0].Tier)
}

func TestRoute_TriageCombinationAcrossTurns(t *testing.T) {
	recorder := &mockRecorder{session: &domain.Session{UserID: "u1", Turns: []domain.Turn{
		{Message: "me duele el pecho", Target: domain.TargetTriage, Reasons: []string{"dolor de pecho"}, Tier: 2},
	}}}
	llm := &mockLLM{responses: []llmResponse{{text: triageJSON(2, "sudoración fría")}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "ahora sudo frío", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.Equal(t, domain.TierEmergency, out.Triage.Capa)
	require.Equal(t, "llamar_emergencias", out.Triage.AccionRecomendada)
	require.Equal(t, []string{"dolor de pecho", "sudoración fría"}, out.Triage.Razones)
	require.Equal(t, domain.TierEmergency, recorder.recorded[0].Tier)
}

func TestRoute_ExtractionFailureDegrades(t *testing.T) {
	recorder := &mockRecorder{session: &domain.Session{UserID: "u1", Turns: []domain.Turn{
		{Message: "hola", Target: domain.TargetTriage, PendingQuestion: "¿Desde cuándo tienes fiebre?"},
	}}}
	llm := &mockLLM{responses: []llmResponse{{err: errors.New("ThrottlingException")}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "desde ayer", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.True(t, out.NeedsMoreInfo)
	require.Equal(t, "¿Desde cuándo tienes fiebre?", out.PendingQuestion)

	require.Len(t, recorder.recorded, 1)
	require.Empty(t, recorder.recorded[0].Fields)
	require.Equal(t, "desde ayer", recorder.recorded[0].Message)
}

func TestRoute_MalformedModelOutputDegrades(t *testing.T) {
	recorder := &mockRecorder{}
	llm := &mockLLM{responses: []llmResponse{{text: "lo siento, no puedo ayudar con eso"}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "tengo tos", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.True(t, out.NeedsMoreInfo)
	require.Len(t, recorder.recorded, 1)
}

func TestRoute_ClassifiesWhenTargetEmpty(t *testing.T) {
	llm := &mockLLM{responses: []llmResponse{
		{text: `{"servicio":"doctors"}`},
		{text: `{"especialidad":"Cardiología"}`},
	}}
	directory := &mockDirectory{doctors: []domain.Doctor{{ID: "DOC-001", Nombre: "Dra. Rojas", Especialidad: "Cardiología"}}}
	s := newTestService(t, serviceDeps{llm: llm, directory: directory})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "quiero un cardiólogo"})
	require.NoError(t, err)
	require.Equal(t, domain.TargetDoctors, out.Target)
	require.Equal(t, 2, llm.callCount)
	require.Equal(t, "Cardiología", directory.lastCriteria.Especialidad)
}

func TestRoute_ClassifierFailureDefaultsToTriage(t *testing.T) {
	llm := &mockLLM{responses: []llmResponse{
		{err: errors.New("boom")},
		{text: triageJSON(1, "malestar general")},
	}}
	s := newTestService(t, serviceDeps{llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "no me siento bien"})
	require.NoError(t, err)
	require.Equal(t, domain.TargetTriage, out.Target)
	require.NotNil(t, out.Triage)
}

func TestRoute_ClassifierGarbageDefaultsToTriage(t *testing.T) {
	llm := &mockLLM{responses: []llmResponse{
		{text: `{"servicio":"pharmacy"}`},
		{text: triageJSON(1, "malestar general")},
	}}
	s := newTestService(t, serviceDeps{llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "no me siento bien"})
	require.NoError(t, err)
	require.Equal(t, domain.TargetTriage, out.Target)
}

func TestRoute_DoctorsMissingEspecialidadAsks(t *testing.T) {
	directory := &mockDirectory{}
	llm := &mockLLM{responses: []llmResponse{{text: `{"modalidad":"virtual"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, directory: directory})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "quiero una cita virtual", Target: domain.TargetDoctors})
	require.NoError(t, err)
	require.True(t, out.NeedsMoreInfo)
	require.Equal(t, askEspecialidad, out.PendingQuestion)
	require.Zero(t, directory.findCalls)
	require.Equal(t, "virtual", out.Doctors.Criteria["modalidad"])
}

func TestRoute_DoctorsUsesTriageSuggestedSpecialty(t *testing.T) {
	recorder := &mockRecorder{session: &domain.Session{UserID: "u1", Turns: []domain.Turn{
		{Message: "me duele el pecho", Target: domain.TargetTriage,
			Fields: map[string]string{"especialidad_sugerida": "Cardiología"}, Tier: 2},
	}}}
	directory := &mockDirectory{doctors: []domain.Doctor{{ID: "DOC-001", Nombre: "Dra. Rojas", Especialidad: "Cardiología"}}}
	llm := &mockLLM{responses: []llmResponse{{text: `{"distrito":"Miraflores"}`}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm, directory: directory})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "busca uno en Miraflores", Target: domain.TargetDoctors})
	require.NoError(t, err)
	require.False(t, out.NeedsMoreInfo)
	require.Equal(t, "Cardiología", directory.lastCriteria.Especialidad)
	require.Equal(t, "Miraflores", directory.lastCriteria.Distrito)
	require.Len(t, out.Doctors.Doctors, 1)
}

func TestRoute_DoctorsSchedulesBounded(t *testing.T) {
	var doctors []domain.Doctor
	for _, id := range []string{"D1", "D2", "D3", "D4", "D5", "D6", "D7"} {
		doctors = append(doctors, domain.Doctor{ID: id, Nombre: "Dr. " + id, Especialidad: "Dermatología"})
	}
	directory := &mockDirectory{doctors: doctors, schedules: []domain.Schedule{{DoctorID: "D1", DiaSemana: "Lunes"}}}
	llm := &mockLLM{responses: []llmResponse{{text: `{"especialidad":"Dermatología","dia_semana":"Lunes"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, directory: directory})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "dermatólogo el lunes", Target: domain.TargetDoctors})
	require.NoError(t, err)
	require.Len(t, directory.lastIDs, maxScheduleLookups)
	require.Equal(t, "Lunes", directory.lastDia)
	require.Len(t, out.Doctors.Schedules, 1)
}

func TestRoute_DoctorsScheduleFailureDegrades(t *testing.T) {
	directory := &mockDirectory{
		doctors:      []domain.Doctor{{ID: "D1", Nombre: "Dr. Vega", Especialidad: "Neurología"}},
		schedulesErr: errors.New("boom"),
	}
	llm := &mockLLM{responses: []llmResponse{{text: `{"especialidad":"Neurología"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, directory: directory})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "neurólogo por favor", Target: domain.TargetDoctors})
	require.NoError(t, err)
	require.Len(t, out.Doctors.Doctors, 1)
	require.Empty(t, out.Doctors.Schedules)
}

func TestRoute_DoctorsQueryError(t *testing.T) {
	directory := &mockDirectory{doctorsErr: errors.New("ResourceNotFoundException")}
	llm := &mockLLM{responses: []llmResponse{{text: `{"especialidad":"Neurología"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, directory: directory})

	_, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "neurólogo", Target: domain.TargetDoctors})
	requireCode(t, err, ErrorInternal)
}

func TestRoute_WorkshopsWithRetrieval(t *testing.T) {
	catalog := &mockCatalog{workshops: []domain.Workshop{{ID: "WS-01", Titulo: "Higiene del sueño", Tema: "sleep_hygiene"}}}
	retriever := &mockRetriever{docs: []domain.RAGDocument{{Content: "Dormir bien...", Source: "guia-sueno.md"}}}
	llm := &mockLLM{responses: []llmResponse{{text: `{"tema":"sleep_hygiene","modalidad":"virtual"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, catalog: catalog, retriever: retriever})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "talleres para dormir mejor", Target: domain.TargetWorkshops})
	require.NoError(t, err)
	require.Equal(t, "sleep_hygiene", catalog.lastFilters.Tema)
	require.Equal(t, "virtual", catalog.lastFilters.Modalidad)
	require.Len(t, out.Workshops.Workshops, 1)
	require.Len(t, out.Workshops.Documents, 1)
	require.Equal(t, "talleres para dormir mejor", retriever.lastQuery)
}

func TestRoute_WorkshopsRetrievalFailureDegrades(t *testing.T) {
	catalog := &mockCatalog{workshops: []domain.Workshop{{ID: "WS-01", Titulo: "Higiene del sueño"}}}
	retriever := &mockRetriever{err: errors.New("worker failed")}
	llm := &mockLLM{responses: []llmResponse{{text: `{"tema":"sleep_hygiene"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, catalog: catalog, retriever: retriever})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "talleres de sueño", Target: domain.TargetWorkshops})
	require.NoError(t, err)
	require.Len(t, out.Workshops.Workshops, 1)
	require.Empty(t, out.Workshops.Documents)
}

func TestRoute_WorkshopsWithoutRetriever(t *testing.T) {
	catalog := &mockCatalog{}
	llm := &mockLLM{responses: []llmResponse{{text: `{"tema":"nutrition"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, catalog: catalog})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "talleres de nutrición", Target: domain.TargetWorkshops})
	require.NoError(t, err)
	require.Empty(t, out.Workshops.Documents)
}

func TestRoute_WorkshopsQueryError(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("boom")}
	llm := &mockLLM{responses: []llmResponse{{text: `{"tema":"nutrition"}`}}}
	s := newTestService(t, serviceDeps{llm: llm, catalog: catalog})

	_, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "talleres", Target: domain.TargetWorkshops})
	requireCode(t, err, ErrorInternal)
}

func TestRoute_RecordFailureStillAnswers(t *testing.T) {
	recorder := &mockRecorder{recordErr: errors.New("throughput exceeded")}
	llm := &mockLLM{responses: []llmResponse{{text: triageJSON(1, "tos leve")}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm})

	out, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "tengo tos", Target: domain.TargetTriage})
	require.NoError(t, err)
	require.NotNil(t, out.Triage)
}

func TestRoute_PromptCarriesAccumulatedContext(t *testing.T) {
	recorder := &mockRecorder{session: &domain.Session{UserID: "u1", Turns: []domain.Turn{
		{Message: "quiero cardiólogo", Target: domain.TargetDoctors,
			Fields:          map[string]string{"especialidad": "Cardiología"},
			PendingQuestion: "¿Para qué día deseas tu cita?"},
	}}}
	directory := &mockDirectory{}
	llm := &mockLLM{responses: []llmResponse{{text: `{"fecha":"2026-08-25"}`}}}
	s := newTestService(t, serviceDeps{recorder: recorder, llm: llm, directory: directory})

	_, err := s.Route(context.Background(), RouteInput{UserID: "u1", Message: "para mañana", Target: domain.TargetDoctors})
	require.NoError(t, err)
	require.Contains(t, llm.lastUser, "especialidad: Cardiología")
	require.Contains(t, llm.lastUser, "¿Para qué día deseas tu cita?")
	require.Contains(t, llm.lastUser, "para mañana")
}

func TestNewRouteService_Validation(t *testing.T) {
	machine := risk.NewMachine(risk.DefaultTriggerTable())
	_, err := NewRouteService(nil, &mockLLM{}, &mockDirectory{}, &mockCatalog{}, nil, machine, 0)
	require.Error(t, err)
	_, err = NewRouteService(&mockRecorder{}, nil, &mockDirectory{}, &mockCatalog{}, nil, machine, 0)
	require.Error(t, err)
	_, err = NewRouteService(&mockRecorder{}, &mockLLM{}, nil, &mockCatalog{}, nil, machine, 0)
	require.Error(t, err)
	_, err = NewRouteService(&mockRecorder{}, &mockLLM{}, &mockDirectory{}, nil, nil, machine, 0)
	require.Error(t, err)
	_, err = NewRouteService(&mockRecorder{}, &mockLLM{}, &mockDirectory{}, &mockCatalog{}, nil, nil, 0)
	require.Error(t, err)
}
