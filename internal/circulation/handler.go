// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libracore/internal/httpapi"
	"libracore/internal/liberr"
	"libracore/internal/model"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the circulation router, mounted under /borrowings.
// Checkout, return, renew, claim, and condition reports are desk
// operations and require a staff actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCheckout)
	r.Get("/", h.handleList)
	r.Post("/claims", h.handleClaim)
	r.Post("/condition-reports", h.handleReportCondition)
	r.Get("/{borrowingID}", h.handleGet)
	r.Post("/{borrowingID}/return", h.handleReturn)
	r.Post("/{borrowingID}/renew", h.handleRenew)
	return r
}

func staffActor(w http.ResponseWriter, r *http.Request) (httpapi.Actor, bool) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return httpapi.Actor{}, false
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may operate the lending desk"))
		return httpapi.Actor{}, false
	}
	return actor, true
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := staffActor(w, r)
	if !ok {
		return
	}

	var req struct {
		BookID     uuid.UUID `json:"book_id"`
		BorrowerID uuid.UUID `json:"borrower_id"`
		LoanDays   int       `json:"loan_days"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	borrowing, err := h.service.Checkout(r.Context(), req.BookID, req.BorrowerID, actor.ID, req.LoanDays)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, borrowing)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := staffActor(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "borrowingID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	borrowing, err := h.service.Return(r.Context(), id, actor.ID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, borrowing)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	if _, ok := staffActor(w, r); !ok {
		return
	}
	id, err := httpapi.PathID(r, "borrowingID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	var req struct {
		ExtraDays int `json:"extra_days"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	newDue, err := h.service.Renew(r.Context(), id, req.ExtraDays)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]any{"due_at": newDue})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := staffActor(w, r)
	if !ok {
		return
	}

	var req struct {
		ReservationID uuid.UUID `json:"reservation_id"`
		BorrowerID    uuid.UUID `json:"borrower_id"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	borrowing, err := h.service.Claim(r.Context(), req.ReservationID, req.BorrowerID, actor.ID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, borrowing)
}

func (h *Handler) handleReportCondition(w http.ResponseWriter, r *http.Request) {
	actor, ok := staffActor(w, r)
	if !ok {
		return
	}

	var req struct {
		CopyID    uuid.UUID `json:"copy_id"`
		Condition string    `json:"condition"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	condition, err := model.ParseCopyStatus(req.Condition)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	if err := h.service.ReportCondition(r.Context(), req.CopyID, condition, actor.ID); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "borrowingID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	borrowing, err := h.service.GetBorrowing(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, borrowing)
}

// handleList serves borrowing history filtered by user_id or copy_id.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("copy_id") != "" {
		copyID, err := httpapi.QueryID(r, "copy_id")
		if err != nil {
			httpapi.RespondError(w, err)
			return
		}
		out, err := h.service.ListByCopy(r.Context(), copyID)
		if err != nil {
			httpapi.RespondError(w, err)
			return
		}
		httpapi.RespondJSON(w, http.StatusOK, out)
		return
	}

	userID, err := httpapi.QueryID(r, "user_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	out, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, out)
}
