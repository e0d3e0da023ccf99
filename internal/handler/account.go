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
)

type accountService interface {
	List(ctx context.Context, actor domain.Actor) ([]domain.Account, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Account, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.AccountStatus) (*domain.Account, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type accountDTO struct {
	ID               uuid.UUID `json:"id"`
	NumeroCuenta     string    `json:"numeroCuenta"`
	Tipo             string    `json:"tipo"`
	Moneda           string    `json:"moneda"`
	Balance          int64     `json:"balance"`
	AvailableBalance int64     `json:"balanceDisponible"`
	DailyLimit       int64     `json:"limiteDiario"`
	Estado           string    `json:"estado"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:               a.ID,
		NumeroCuenta:     a.NumeroCuenta,
		Tipo:             string(a.Tipo),
		Moneda:           string(a.Moneda),
		Balance:          a.Balance,
		AvailableBalance: a.AvailableBalance,
		DailyLimit:       a.DailyLimit,
		Estado:           string(a.Estado),
		CreatedAt:        a.CreatedAt,
	}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accounts, err := h.accounts.List(r.Context(), actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, 0, len(accounts))
	for i := range accounts {
		dtos = append(dtos, toAccountDTO(&accounts[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	acct, err := h.accounts.Get(r.Context(), actor, accountID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(acct))
}

type updateAccountStatusRequest struct {
	Estado string `json:"estado"`
}

func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updateAccountStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Estado == "" {
		RespondValidationError(w, []FieldError{{Field: "estado", Message: "required"}})
		return
	}

	acct, err := h.accounts.UpdateStatus(r.Context(), actor, accountID, domain.AccountStatus(req.Estado))
	if err != nil {
		logging.FromContext(r.Context()).Warn("account status change failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(acct))
}
