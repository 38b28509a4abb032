package usecase

import (
	"context"

	"intake-router/internal/domain"
)

const maxSupportingDocuments = 3

// WorkshopsResult is the workshop interpreter's answer: the matching
// catalog entries plus any knowledge-base documents supporting them.
type WorkshopsResult struct {
	Filters   map[string]string
	Workshops []domain.Workshop
	Documents []domain.RAGDocument
}

// interpretWorkshops searches the catalog with the merged filters and, when
// a retriever is configured, enriches the answer with supporting documents.
// Retrieval failures degrade to a catalog-only answer.
func (s *RouteService) interpretWorkshops(ctx context.Context, merged domain.AccumulatedContext, message string) (*WorkshopsResult, error) {
	filters := domain.WorkshopFilters{
		Tema:      merged.Value("tema"),
		Fecha:     merged.Value("fecha"),
		Modalidad: merged.Value("modalidad"),
		Ubicacion: merged.Value("ubicacion"),
	}

	workshops, err := s.workshops.Search(ctx, filters)
	if err != nil {
		return nil, newError(ErrorInternal, "workshops_query_error", err)
	}

	out := &WorkshopsResult{Filters: merged.FieldMap(), Workshops: workshops}
	if s.retriever == nil {
		return out, nil
	}

	docs, err := s.retriever.Retrieve(ctx, message, maxSupportingDocuments)
	if err != nil {
		s.logger.Warn("retrieval failed, answering from catalog only", "err", err)
		return out, nil
	}
	out.Documents = docs
	return out, nil
}
