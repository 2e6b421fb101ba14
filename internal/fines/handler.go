// internal/fines/handler.go
package fines

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"libracore/internal/httpapi"
	"libracore/internal/liberr"
)

type Handler struct {
	service Service
	// sweepRate is the per-day charge the sweep endpoint applies.
	sweepRate decimal.Decimal
}

func NewHandler(service Service, sweepRate decimal.Decimal) *Handler {
	return &Handler{service: service, sweepRate: sweepRate}
}

// Routes returns the fines router, mounted under /fines.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/balance", h.handleBalance)
	r.Post("/sweep", h.handleSweep)
	r.Get("/{fineID}", h.handleGet)
	r.Post("/{fineID}/pay", h.handlePay)
	r.Post("/{fineID}/waive", h.handleWaive)
	return r
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may record payments"))
		return
	}

	id, err := httpapi.PathID(r, "fineID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	if err := h.service.Pay(r.Context(), id, req.Amount, req.Method, actor.ID); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWaive(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if actor.Role != httpapi.RoleAdmin {
		httpapi.RespondError(w, liberr.BusinessRulef("only admins may waive fines"))
		return
	}

	id, err := httpapi.PathID(r, "fineID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if err := h.service.Waive(r.Context(), id, actor.ID); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryID(r, "user_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	balance, err := h.service.OutstandingBalance(r.Context(), userID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may run the overdue sweep"))
		return
	}

	created, err := h.service.SweepOverdue(r.Context(), h.sweepRate, actor.ID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "fineID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	fine, err := h.service.GetFine(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, fine)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryID(r, "user_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	list, err := h.service.ListFines(r.Context(), userID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, list)
}
