package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/auth"
	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/logging"
	"github.com/banpacifico/core-api/internal/repository"
)

type approvalService interface {
	List(ctx context.Context, actor domain.Actor, filter repository.ListFilter) ([]domain.HighValueOperation, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.HighValueOperation, []domain.OperationNote, error)
	CompleteVerification(ctx context.Context, actor domain.Actor, operationID uuid.UUID, result domain.VerificationStatus) (*domain.HighValueOperation, error)
	Approve(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.HighValueOperation, error)
	Reject(ctx context.Context, actor domain.Actor, operationID uuid.UUID, razon, nota string) (*domain.HighValueOperation, error)
	Block(ctx context.Context, actor domain.Actor, operationID uuid.UUID, razon string) (*domain.HighValueOperation, error)
	Unblock(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.HighValueOperation, error)
	Complete(ctx context.Context, actor domain.Actor, operationID uuid.UUID) (*domain.HighValueOperation, error)
	AddNote(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.OperationNote, error)
}

type OperationHandler struct {
	approvals approvalService
}

func NewOperationHandler(approvals approvalService) *OperationHandler {
	return &OperationHandler{approvals: approvals}
}

type verificationDTO struct {
	Tipo   string     `json:"tipo"`
	Estado string     `json:"estado"`
	Fecha  *time.Time `json:"fecha,omitempty"`
}

type operationDTO struct {
	ID                   uuid.UUID        `json:"id"`
	ClienteID            uuid.UUID        `json:"clienteId"`
	TransactionID        uuid.UUID        `json:"transaccionId"`
	Tipo                 string           `json:"tipo"`
	Monto                int64            `json:"monto"`
	Moneda               string           `json:"moneda"`
	Estado               string           `json:"estado"`
	NivelRiesgo          string           `json:"nivelRiesgo"`
	FlagsRiesgo          []string         `json:"flagsRiesgo"`
	Descripcion          *string          `json:"descripcion,omitempty"`
	RazonBloqueo         *string          `json:"razonBloqueo,omitempty"`
	RazonRechazo         *string          `json:"razonRechazo,omitempty"`
	AprobadoPor          *string          `json:"aprobadoPor,omitempty"`
	RechazadoPor         *string          `json:"rechazadoPor,omitempty"`
	RequiereVerificacion bool             `json:"requiereVerificacion"`
	Verificacion         *verificationDTO `json:"verificacion,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

func toOperationDTO(op *domain.HighValueOperation) operationDTO {
	dto := operationDTO{
		ID:                   op.ID,
		ClienteID:            op.ClienteID,
		TransactionID:        op.TransactionID,
		Tipo:                 string(op.Tipo),
		Monto:                op.Monto,
		Moneda:               string(op.Moneda),
		Estado:               string(op.Estado),
		NivelRiesgo:          string(op.NivelRiesgo),
		FlagsRiesgo:          op.FlagsRiesgo,
		Descripcion:          op.Descripcion,
		RazonBloqueo:         op.RazonBloqueo,
		RazonRechazo:         op.RazonRechazo,
		AprobadoPor:          op.AprobadoPor,
		RechazadoPor:         op.RechazadoPor,
		RequiereVerificacion: op.RequiereVerificacion,
		CreatedAt:            op.CreatedAt,
		UpdatedAt:            op.UpdatedAt,
	}
	if dto.FlagsRiesgo == nil {
		dto.FlagsRiesgo = []string{}
	}
	if op.Verificacion != nil {
		dto.Verificacion = &verificationDTO{
			Tipo:   op.Verificacion.Tipo,
			Estado: string(op.Verificacion.Estado),
			Fecha:  op.Verificacion.Fecha,
		}
	}
	return dto
}

type noteDTO struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Nota      string    `json:"nota"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNoteDTO(n *domain.OperationNote) noteDTO {
	return noteDTO{ID: n.ID, Actor: n.Actor, Nota: n.Nota, CreatedAt: n.CreatedAt}
}

func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	filter := repository.ListFilter{
		Estado:      domain.OperationStatus(r.URL.Query().Get("estado")),
		NivelRiesgo: domain.RiskLevel(r.URL.Query().Get("nivelRiesgo")),
	}
	if raw := r.URL.Query().Get("clienteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondValidationError(w, []FieldError{{Field: "clienteId", Message: "must be a valid uuid"}})
			return
		}
		filter.ClienteID = id
	}

	ops, err := h.approvals.List(r.Context(), actor, filter)
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]operationDTO, 0, len(ops))
	for i := range ops {
		dtos = append(dtos, toOperationDTO(&ops[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	operationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	op, notes, err := h.approvals.Get(r.Context(), actor, operationID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	noteDTOs := make([]noteDTO, 0, len(notes))
	for i := range notes {
		noteDTOs = append(noteDTOs, toNoteDTO(&notes[i]))
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"operacion": toOperationDTO(op),
		"notas":     noteDTOs,
	})
}

type verifyRequest struct {
	Resultado string `json:"resultado"`
}

func (h *OperationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	operationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	op, err := h.approvals.CompleteVerification(r.Context(), actor, operationID, domain.VerificationStatus(req.Resultado))
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation verification failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toOperationDTO(op))
}

type decisionRequest struct {
	Razon string `json:"razon"`
	Nota  string `json:"nota"`
}

func (h *OperationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, actor domain.Actor, id uuid.UUID, req decisionRequest) (*domain.HighValueOperation, error) {
		return h.approvals.Approve(ctx, actor, id, req.Nota)
	})
}

func (h *OperationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, actor domain.Actor, id uuid.UUID, req decisionRequest) (*domain.HighValueOperation, error) {
		return h.approvals.Reject(ctx, actor, id, req.Razon, req.Nota)
	})
}

func (h *OperationHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, actor domain.Actor, id uuid.UUID, req decisionRequest) (*domain.HighValueOperation, error) {
		return h.approvals.Block(ctx, actor, id, req.Razon)
	})
}

func (h *OperationHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, actor domain.Actor, id uuid.UUID, req decisionRequest) (*domain.HighValueOperation, error) {
		return h.approvals.Unblock(ctx, actor, id, req.Nota)
	})
}

func (h *OperationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, actor domain.Actor, id uuid.UUID, req decisionRequest) (*domain.HighValueOperation, error) {
		return h.approvals.Complete(ctx, actor, id)
	})
}

// decide shares the decode/dispatch shape of every review decision endpoint.
// An empty body is allowed for decisions that need no reason.
func (h *OperationHandler) decide(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.Actor, uuid.UUID, decisionRequest) (*domain.HighValueOperation, error)) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	operationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req decisionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	op, err := apply(r.Context(), actor, operationID, req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation decision failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toOperationDTO(op))
}

type addNoteRequest struct {
	Nota string `json:"nota"`
}

func (h *OperationHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	operationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	note, err := h.approvals.AddNote(r.Context(), actor, operationID, req.Nota)
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation note failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toNoteDTO(note))
}
