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
	"github.com/banpacifico/core-api/internal/service"
)

type beneficiaryService interface {
	List(ctx context.Context, actor domain.Actor) ([]domain.Beneficiary, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Beneficiary, error)
	Create(ctx context.Context, actor domain.Actor, in service.CreateBeneficiaryInput) (*domain.Beneficiary, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.BeneficiaryStatus) (*domain.Beneficiary, error)
	UpdateAlias(ctx context.Context, actor domain.Actor, id uuid.UUID, alias string) (*domain.Beneficiary, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type BeneficiaryHandler struct {
	beneficiaries beneficiaryService
}

func NewBeneficiaryHandler(beneficiaries beneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries}
}

type beneficiaryDTO struct {
	ID              uuid.UUID `json:"id"`
	Alias           string    `json:"alias"`
	Banco           string    `json:"banco"`
	NumeroCuenta    string    `json:"numeroCuenta"`
	Moneda          string    `json:"moneda"`
	Pais            string    `json:"pais"`
	Estado          string    `json:"estado"`
	TienePendientes bool      `json:"tieneOperacionesPendientes"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toBeneficiaryDTO(b *domain.Beneficiary) beneficiaryDTO {
	return beneficiaryDTO{
		ID:              b.ID,
		Alias:           b.Alias,
		Banco:           b.Banco,
		NumeroCuenta:    b.NumeroCuenta,
		Moneda:          string(b.Moneda),
		Pais:            b.Pais,
		Estado:          string(b.Estado),
		TienePendientes: b.TienePendientes,
		CreatedAt:       b.CreatedAt,
	}
}

type createBeneficiaryRequest struct {
	Alias        string `json:"alias"`
	Banco        string `json:"banco"`
	NumeroCuenta string `json:"numeroCuenta"`
	Moneda       string `json:"moneda"`
	Pais         string `json:"pais"`
}

func (r createBeneficiaryRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Alias == "" {
		errs = append(errs, FieldError{Field: "alias", Message: "required"})
	}
	if r.Banco == "" {
		errs = append(errs, FieldError{Field: "banco", Message: "required"})
	}
	if r.NumeroCuenta == "" {
		errs = append(errs, FieldError{Field: "numeroCuenta", Message: "required"})
	}
	if r.Moneda == "" {
		errs = append(errs, FieldError{Field: "moneda", Message: "required"})
	} else if !domain.Currency(r.Moneda).IsValid() {
		errs = append(errs, FieldError{Field: "moneda", Message: "must be CRC or USD"})
	}

	return errs
}

func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	beneficiaries, err := h.beneficiaries.List(r.Context(), actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("beneficiary list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]beneficiaryDTO, 0, len(beneficiaries))
	for i := range beneficiaries {
		dtos = append(dtos, toBeneficiaryDTO(&beneficiaries[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *BeneficiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	beneficiaryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	b, err := h.beneficiaries.Get(r.Context(), actor, beneficiaryID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("beneficiary lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBeneficiaryDTO(b))
}

func (h *BeneficiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	b, err := h.beneficiaries.Create(r.Context(), actor, service.CreateBeneficiaryInput{
		Alias:        req.Alias,
		Banco:        req.Banco,
		NumeroCuenta: req.NumeroCuenta,
		Moneda:       domain.Currency(req.Moneda),
		Pais:         req.Pais,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("beneficiary creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toBeneficiaryDTO(b))
}

type updateBeneficiaryRequest struct {
	Alias  *string `json:"alias"`
	Estado *string `json:"estado"`
}

// Update changes the alias, the status, or both.
func (h *BeneficiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	beneficiaryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updateBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Alias == nil && req.Estado == nil {
		RespondValidationError(w, []FieldError{{Field: "alias", Message: "alias or estado is required"}})
		return
	}

	var b *domain.Beneficiary
	if req.Alias != nil {
		b, err = h.beneficiaries.UpdateAlias(r.Context(), actor, beneficiaryID, *req.Alias)
		if err != nil {
			logging.FromContext(r.Context()).Warn("beneficiary alias change failed", "error", err)
			RespondDomainError(w, err)
			return
		}
	}
	if req.Estado != nil {
		b, err = h.beneficiaries.UpdateStatus(r.Context(), actor, beneficiaryID, domain.BeneficiaryStatus(*req.Estado))
		if err != nil {
			logging.FromContext(r.Context()).Warn("beneficiary status change failed", "error", err)
			RespondDomainError(w, err)
			return
		}
	}

	RespondSuccess(w, http.StatusOK, toBeneficiaryDTO(b))
}

func (h *BeneficiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	beneficiaryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.beneficiaries.Delete(r.Context(), actor, beneficiaryID); err != nil {
		logging.FromContext(r.Context()).Warn("beneficiary deletion failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
