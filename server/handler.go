// Package server is the inbound HTTP surface. It translates JSON payloads
// into commands for the account registry and renders the replies; field
// validation lives here, the core only enforces the non-negative balance
// invariant.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"bank-accounts/app"
	"bank-accounts/domain"
	"bank-accounts/events"
	"bank-accounts/shared"
)

// AccountService is what the handlers need from the registry.
type AccountService interface {
	Open(owner string, currency shared.Currency, initialBalance decimal.Decimal) (string, error)
	ChangeBalance(id string, delta decimal.Decimal) (*domain.Account, error)
	Get(id string) (*domain.Account, error)
	History(id string, skip, limit int) ([]events.Event, error)
}

type Handler struct {
	accounts AccountService
}

func New(accounts AccountService) *Handler {
	return &Handler{accounts: accounts}
}

// Router wires the account routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/accounts", h.handleOpenAccount)
	r.Get("/accounts/{id}", h.handleGetAccount)
	r.Post("/accounts/{id}/balance", h.handleChangeBalance)
	r.Get("/accounts/{id}/history", h.handleHistory)

	return r
}

type openAccountRequest struct {
	Owner          string          `json:"owner"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type changeBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

func (h *Handler) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	owner := strings.TrimSpace(req.Owner)
	currency := strings.TrimSpace(req.Currency)
	if owner == "" {
		respondError(w, http.StatusBadRequest, "owner is required")
		return
	}
	if currency == "" {
		respondError(w, http.StatusBadRequest, "currency is required")
		return
	}
	if req.InitialBalance.IsNegative() {
		respondError(w, http.StatusBadRequest, "initialBalance cannot be negative")
		return
	}

	id, err := h.accounts.Open(owner, shared.Currency(currency), req.InitialBalance)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/accounts/"+id)
	respond(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, account)
}

func (h *Handler) handleChangeBalance(w http.ResponseWriter, r *http.Request) {
	var req changeBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Delta.IsZero() {
		respondError(w, http.StatusUnprocessableEntity, "delta must be non-zero")
		return
	}

	account, err := h.accounts.ChangeBalance(chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, account)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 0)

	history, err := h.accounts.History(chi.URLParam(r, "id"), skip, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, history)
}

// respondServiceError maps registry errors onto HTTP statuses. The two
// rejection reasons stay distinct: unknown identifier is 404, insufficient
// funds is 400.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccountExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrReplyTimeout):
		respondError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, app.ErrMailboxFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
