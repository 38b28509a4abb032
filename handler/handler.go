// Package handler adapts API Gateway proxy events to the route service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"intake-router/internal/domain"
	"intake-router/internal/usecase"
)

// UseCase is the single operation the handler depends on.
type UseCase interface {
	Route(ctx context.Context, in usecase.RouteInput) (usecase.RouteOutput, error)
}

type Handler struct {
	uc UseCase
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

type routeRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type routeResponse struct {
	Servicio               string            `json:"servicio"`
	RequiereMasInformacion bool              `json:"requiere_mas_informacion"`
	PreguntaPendiente      string            `json:"pregunta_pendiente,omitempty"`
	Triage                 *triagePayload    `json:"triage,omitempty"`
	Doctores               *doctorsPayload   `json:"doctores,omitempty"`
	Talleres               *workshopsPayload `json:"talleres,omitempty"`
}

type triagePayload struct {
	Capa                 int      `json:"capa"`
	Razones              []string `json:"razones"`
	EspecialidadSugerida string   `json:"especialidad_sugerida,omitempty"`
	TallerSugerido       string   `json:"taller_sugerido,omitempty"`
	AccionRecomendada    string   `json:"accion_recomendada"`
	DerivarA             string   `json:"derivar_a,omitempty"`
	Advertencia          string   `json:"advertencia"`
}

type doctorsPayload struct {
	Criterios map[string]string `json:"criterios"`
	Doctores  []domain.Doctor   `json:"doctores"`
	Horarios  []domain.Schedule `json:"horarios,omitempty"`
}

type workshopsPayload struct {
	Filtros    map[string]string    `json:"filtros"`
	Talleres   []domain.Workshop    `json:"talleres"`
	Documentos []domain.RAGDocument `json:"documentos,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle processes one API Gateway proxy event. The last path segment picks
// the interpreter; /route lets the classifier decide.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)

	if event.HTTPMethod != http.MethodPost {
		return respondError(correlationID, http.StatusMethodNotAllowed, string(usecase.ErrorInvalidInput), "method_not_allowed"), nil
	}

	target, ok := targetFromPath(event.Path)
	if !ok {
		return respondError(correlationID, http.StatusNotFound, string(usecase.ErrorInvalidInput), "unknown_path"), nil
	}

	var req routeRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respondError(correlationID, http.StatusBadRequest, string(usecase.ErrorInvalidInput), "malformed_body"), nil
	}

	out, err := h.uc.Route(ctx, usecase.RouteInput{
		UserID:  req.UserID,
		Message: req.Message,
		Target:  target,
	})
	if err != nil {
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) {
			slog.Error("route failed", "correlationId", correlationID, "code", ucErr.Code, "reason", ucErr.Reason, "err", err)
			return respondError(correlationID, statusFor(ucErr.Code), string(ucErr.Code), ucErr.Reason), nil
		}
		slog.Error("route failed", "correlationId", correlationID, "err", err)
		return respondError(correlationID, http.StatusInternalServerError, string(usecase.ErrorInternal), ""), nil
	}

	return respond(correlationID, http.StatusOK, toResponse(out)), nil
}

// targetFromPath resolves the interpreter from the request path. The empty
// target on /route means "classify first".
func targetFromPath(path string) (domain.Target, bool) {
	path = strings.TrimRight(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", false
	}
	switch path[idx+1:] {
	case "route":
		return "", true
	case "triage":
		return domain.TargetTriage, true
	case "doctors":
		return domain.TargetDoctors, true
	case "workshops":
		return domain.TargetWorkshops, true
	}
	return "", false
}

func toResponse(out usecase.RouteOutput) routeResponse {
	resp := routeResponse{
		Servicio:               string(out.Target),
		RequiereMasInformacion: out.NeedsMoreInfo,
		PreguntaPendiente:      out.PendingQuestion,
	}
	if out.Triage != nil {
		resp.Triage = &triagePayload{
			Capa:                 out.Triage.Capa,
			Razones:              out.Triage.Razones,
			EspecialidadSugerida: out.Triage.EspecialidadSugerida,
			TallerSugerido:       out.Triage.TallerSugerido,
			AccionRecomendada:    out.Triage.AccionRecomendada,
			DerivarA:             out.Triage.DerivarA,
			Advertencia:          out.Triage.Advertencia,
		}
	}
	if out.Doctors != nil {
		resp.Doctores = &doctorsPayload{
			Criterios: out.Doctors.Criteria,
			Doctores:  out.Doctors.Doctors,
			Horarios:  out.Doctors.Schedules,
		}
	}
	if out.Workshops != nil {
		resp.Talleres = &workshopsPayload{
			Filtros:    out.Workshops.Filters,
			Talleres:   out.Workshops.Workshops,
			Documentos: out.Workshops.Documents,
		}
	}
	return resp
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(correlationID string, status int, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    responseHeaders(correlationID),
			Body:       `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    responseHeaders(correlationID),
		Body:       string(payload),
	}
}

func respondError(correlationID string, status int, code, reason string) events.APIGatewayProxyResponse {
	return respond(correlationID, status, errorResponse{Error: code, Reason: reason})
}

func responseHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Content-Type":     "application/json",
		"X-Correlation-Id": correlationID,
	}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Correlation-Id") && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
