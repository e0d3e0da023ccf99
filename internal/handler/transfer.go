package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/auth"
	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/logging"
)

type transferService interface {
	Precheck(ctx context.Context, actor domain.Actor, req domain.TransferRequest) (*domain.TransferPrecheck, error)
	Execute(ctx context.Context, actor domain.Actor, req domain.TransferRequest) (*domain.Transaction, error)
	Cancel(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Transaction, []domain.TransactionEvent, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type transferRequest struct {
	CuentaOrigenID  string  `json:"cuentaOrigenId"`
	CuentaDestinoID *string `json:"cuentaDestinoId"`
	BeneficiarioID  *string `json:"beneficiarioId"`
	Monto           int64   `json:"monto"`
	Descripcion     *string `json:"descripcion"`
	Programada      bool    `json:"programada"`
	FechaProgramada *string `json:"fechaProgramada"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError

	if r.CuentaOrigenID == "" {
		errs = append(errs, FieldError{Field: "cuentaOrigenId", Message: "required"})
	} else if _, err := uuid.Parse(r.CuentaOrigenID); err != nil {
		errs = append(errs, FieldError{Field: "cuentaOrigenId", Message: "must be a valid uuid"})
	}

	if r.Monto <= 0 {
		errs = append(errs, FieldError{Field: "monto", Message: "must be greater than 0"})
	}

	if r.CuentaDestinoID == nil && r.BeneficiarioID == nil {
		errs = append(errs, FieldError{Field: "cuentaDestinoId", Message: "either cuentaDestinoId or beneficiarioId is required"})
	}
	if r.CuentaDestinoID != nil && r.BeneficiarioID != nil {
		errs = append(errs, FieldError{Field: "cuentaDestinoId", Message: "only one destination may be set"})
	}

	if r.Programada && r.FechaProgramada == nil {
		errs = append(errs, FieldError{Field: "fechaProgramada", Message: "required for a scheduled transfer"})
	}
	if r.FechaProgramada != nil {
		if _, err := time.Parse(time.RFC3339, *r.FechaProgramada); err != nil {
			errs = append(errs, FieldError{Field: "fechaProgramada", Message: "must be RFC 3339"})
		}
	}

	return errs
}

func (r transferRequest) toDomain(idempotencyKey string) (domain.TransferRequest, error) {
	origen, err := uuid.Parse(r.CuentaOrigenID)
	if err != nil {
		return domain.TransferRequest{}, err
	}

	req := domain.TransferRequest{
		CuentaOrigenID: origen,
		Monto:          r.Monto,
		Descripcion:    r.Descripcion,
		Programada:     r.Programada,
		IdempotencyKey: idempotencyKey,
	}

	if r.CuentaDestinoID != nil {
		id, err := uuid.Parse(*r.CuentaDestinoID)
		if err != nil {
			return domain.TransferRequest{}, err
		}
		req.CuentaDestinoID = &id
	}
	if r.BeneficiarioID != nil {
		id, err := uuid.Parse(*r.BeneficiarioID)
		if err != nil {
			return domain.TransferRequest{}, err
		}
		req.BeneficiarioID = &id
	}
	if r.FechaProgramada != nil {
		fecha, err := time.Parse(time.RFC3339, *r.FechaProgramada)
		if err != nil {
			return domain.TransferRequest{}, err
		}
		req.FechaProgramada = &fecha
	}
	return req, nil
}

type transactionDTO struct {
	ID               uuid.UUID  `json:"id"`
	Tipo             string     `json:"tipo"`
	Estado           string     `json:"estado"`
	CuentaOrigenID   uuid.UUID  `json:"cuentaOrigenId"`
	CuentaDestinoID  *uuid.UUID `json:"cuentaDestinoId,omitempty"`
	BeneficiarioID   *uuid.UUID `json:"beneficiarioId,omitempty"`
	Monto            int64      `json:"monto"`
	Comision         int64      `json:"comision"`
	MontoTotal       int64      `json:"montoTotal"`
	Moneda           string     `json:"moneda"`
	Descripcion      *string    `json:"descripcion,omitempty"`
	FechaProgramada  *time.Time `json:"fechaProgramada,omitempty"`
	NumeroReferencia string     `json:"numeroReferencia"`
	FailureReason    *string    `json:"razonFallo,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	SettledAt        *time.Time `json:"settledAt,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:               t.ID,
		Tipo:             string(t.Tipo),
		Estado:           string(t.Estado),
		CuentaOrigenID:   t.CuentaOrigenID,
		CuentaDestinoID:  t.CuentaDestinoID,
		BeneficiarioID:   t.BeneficiarioID,
		Monto:            t.Monto,
		Comision:         t.Comision,
		MontoTotal:       t.MontoTotal,
		Moneda:           string(t.Moneda),
		Descripcion:      t.Descripcion,
		FechaProgramada:  t.FechaProgramada,
		NumeroReferencia: t.NumeroReferencia,
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
		SettledAt:        t.SettledAt,
	}
}

type transactionEventDTO struct {
	EventType string    `json:"tipo"`
	Actor     string    `json:"actor"`
	Detail    *string   `json:"detalle,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Precheck simulates the transfer and reports whether it could run, without
// touching balances or creating any record.
func (h *TransferHandler) Precheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	domainReq, err := req.toDomain("")
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	pc, err := h.transfers.Precheck(r.Context(), actor, domainReq)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer precheck failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, pc)
}

// Execute runs the transfer. The Idempotency-Key header is mandatory;
// replaying it returns the original transaction.
func (h *TransferHandler) Execute(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		RespondAppError(w, ErrMissingIdempotencyKey, nil)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	domainReq, err := req.toDomain(idempotencyKey)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	tn, err := h.transfers.Execute(r.Context(), actor, domainReq)
	if err != nil {
		log.Warn("transfer execution failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if tn.Estado == domain.TransactionStatusFallida {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%s", tn.ID))
	RespondSuccess(w, status, toTransactionDTO(tn))
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transactionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	tn, events, err := h.transfers.GetTransaction(r.Context(), actor, transactionID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	eventDTOs := make([]transactionEventDTO, 0, len(events))
	for _, e := range events {
		eventDTOs = append(eventDTOs, transactionEventDTO{
			EventType: string(e.EventType),
			Actor:     e.Actor,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"transaccion": toTransactionDTO(tn),
		"eventos":     eventDTOs,
	})
}

func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transactionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	tn, err := h.transfers.Cancel(r.Context(), actor, transactionID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction cancel failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(tn))
}
