// internal/reservation/handler.go
package reservation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libracore/internal/httpapi"
	"libracore/internal/liberr"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the reservation router, mounted under /reservations.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handlePlaceHold)
	r.Get("/", h.handleListByUser)
	r.Get("/next", h.handleNextPending)
	r.Post("/expire", h.handleExpire)
	r.Get("/{reservationID}", h.handleGet)
	r.Delete("/{reservationID}", h.handleCancel)
	return r
}

func (h *Handler) handlePlaceHold(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	var req struct {
		BookID  uuid.UUID `json:"book_id"`
		UserID  uuid.UUID `json:"user_id"`
		TTLDays int       `json:"ttl_days"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	// Patrons hold for themselves; staff may hold on a patron's behalf.
	userID := actor.ID
	if req.UserID != uuid.Nil && req.UserID != actor.ID {
		if !actor.IsStaff() {
			httpapi.RespondError(w, liberr.BusinessRulef("only staff may place holds for other users"))
			return
		}
		userID = req.UserID
	}

	hold, err := h.service.PlaceHold(r.Context(), req.BookID, userID, req.TTLDays)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, hold)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	id, err := httpapi.PathID(r, "reservationID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	hold, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if hold.UserID != actor.ID && !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only the holder or staff may cancel a reservation"))
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNextPending(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpapi.QueryID(r, "book_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	next, err := h.service.NextPending(r.Context(), bookID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, next)
}

func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may run the expiry sweep"))
		return
	}

	expired, err := h.service.ExpireOverdueHolds(r.Context(), time.Now().UTC())
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "reservationID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	hold, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, hold)
}

func (h *Handler) handleListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := httpapi.QueryID(r, "user_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	holds, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, holds)
}
