// Package usecase orchestrates one intake cycle: load the session, summarize
// it for the target interpreter, extract structure from the new message,
// merge, interpret, record the turn and answer.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"intake-router/internal/conversation"
	"intake-router/internal/domain"
	"intake-router/internal/risk"
)

const defaultMaxMessage = 1000

// SessionRecorder is the conversation-history contract. Load degrades to nil
// on store failure; Record appends one turn with a refreshed TTL.
type SessionRecorder interface {
	Load(ctx context.Context, userID string) *domain.Session
	Record(ctx context.Context, userID string, turn domain.Turn) error
}

// Extractor is one LLM call: system prompt plus user content in, raw model
// text out.
type Extractor interface {
	Invoke(ctx context.Context, system, user string) (string, error)
}

// Directory searches the provider directory and schedules.
type Directory interface {
	FindDoctors(ctx context.Context, criteria domain.DoctorCriteria) ([]domain.Doctor, error)
	FindSchedules(ctx context.Context, doctorIDs []string, diaSemana string) ([]domain.Schedule, error)
}

// WorkshopCatalog searches the wellness-workshop catalog.
type WorkshopCatalog interface {
	Search(ctx context.Context, filters domain.WorkshopFilters) ([]domain.Workshop, error)
}

// Retriever fetches knowledge-base documents supporting an answer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) ([]domain.RAGDocument, error)
}

type RouteService struct {
	recorder      SessionRecorder
	llm           Extractor
	directory     Directory
	workshops     WorkshopCatalog
	retriever     Retriever
	machine       *risk.Machine
	logger        *slog.Logger
	maxMessageLen int
}

type RouteInput struct {
	UserID  string
	Message string
	// Target pins the interpreter; empty means classify the message first.
	Target domain.Target
}

type RouteOutput struct {
	Target          domain.Target
	NeedsMoreInfo   bool
	PendingQuestion string
	Triage          *TriageResult
	Doctors         *DoctorsResult
	Workshops       *WorkshopsResult
}

// NewRouteService wires the dispatcher. retriever may be nil; workshop
// answers then carry no supporting documents.
func NewRouteService(recorder SessionRecorder, llm Extractor, directory Directory, workshops WorkshopCatalog, retriever Retriever, machine *risk.Machine, maxMessageLen int) (*RouteService, error) {
	if recorder == nil {
		return nil, errors.New("usecase: session recorder must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: directory must not be nil")
	}
	if workshops == nil {
		return nil, errors.New("usecase: workshop catalog must not be nil")
	}
	if machine == nil {
		return nil, errors.New("usecase: risk machine must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &RouteService{
		recorder:      recorder,
		llm:           llm,
		directory:     directory,
		workshops:     workshops,
		retriever:     retriever,
		machine:       machine,
		logger:        slog.Default(),
		maxMessageLen: maxMessageLen,
	}, nil
}

// Route processes one user message end to end. Upstream extraction failures
// degrade to an "ask again" answer; only invalid input and data-plane
// failures surface as errors.
func (s *RouteService) Route(ctx context.Context, in RouteInput) (RouteOutput, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return RouteOutput{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return RouteOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return RouteOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	target := in.Target
	if target == "" {
		target = s.classify(ctx, message)
	} else if !target.Valid() {
		return RouteOutput{}, newError(ErrorInvalidInput, "unknown_target", nil)
	}

	session := s.recorder.Load(ctx, userID)
	prior := conversation.Summarize(session, target)
	var pending string
	if session != nil {
		pending = session.LastPendingQuestion(target)
	}

	result, err := s.extract(ctx, target, prior, pending, message)
	if err != nil {
		// The turn is still recorded and answered; the user is asked to
		// rephrase instead of seeing a hard failure.
		s.logger.Warn("extraction failed, degrading to clarification",
			"target", target, "err", err)
		result = domain.ExtractionResult{
			Target:          target,
			Fields:          map[string]string{},
			NeedsMoreInfo:   true,
			PendingQuestion: pending,
		}
	}

	merged := conversation.Accumulate(prior, result)

	out := RouteOutput{
		Target:          target,
		NeedsMoreInfo:   result.NeedsMoreInfo,
		PendingQuestion: result.PendingQuestion,
	}
	turnTier := domain.TierNone

	switch target {
	case domain.TargetTriage:
		triage := s.interpretTriage(session, merged, result)
		out.Triage = &triage
		turnTier = triage.Capa
	case domain.TargetDoctors:
		doctors, question, err := s.interpretDoctors(ctx, merged)
		if err != nil {
			return RouteOutput{}, err
		}
		out.Doctors = doctors
		if question != "" {
			out.NeedsMoreInfo = true
			if out.PendingQuestion == "" {
				out.PendingQuestion = question
			}
		}
	case domain.TargetWorkshops:
		workshops, err := s.interpretWorkshops(ctx, merged, message)
		if err != nil {
			return RouteOutput{}, err
		}
		out.Workshops = workshops
	}

	turn := domain.Turn{
		Message:         message,
		Target:          target,
		Fields:          result.Fields,
		Reasons:         result.Reasons,
		Tier:            turnTier,
		PendingQuestion: out.PendingQuestion,
	}
	if err := s.recorder.Record(ctx, userID, turn); err != nil {
		// The answer is already computed; losing one turn of history is
		// preferable to failing the request.
		s.logger.Warn("turn write failed, answering without history update",
			"userId", userID, "err", err)
	}

	return out, nil
}

// classify picks the interpreter for an unpinned message. Any failure
// defaults to triage: the medical path asks clarifying questions anyway,
// while a misrouted symptom description could hide urgency.
func (s *RouteService) classify(ctx context.Context, message string) domain.Target {
	raw, err := s.llm.Invoke(ctx, classifierSystemPrompt, message)
	if err == nil {
		target, perr := parseClassification(raw)
		if perr == nil {
			return target
		}
		err = perr
	}
	s.logger.Warn("classification failed, defaulting to triage", "err", err)
	return domain.TargetTriage
}

func (s *RouteService) extract(ctx context.Context, target domain.Target, prior domain.AccumulatedContext, pending, message string) (domain.ExtractionResult, error) {
	raw, err := s.llm.Invoke(ctx, systemPromptFor(target), buildUserPrompt(prior, pending, message))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("usecase: extract: %w", err)
	}
	return parseExtraction(target, raw)
}
