// internal/registry/handler.go
package registry

import (
	"net/http"

	"github.com/go-chi/chi/v5"

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

// Routes returns the copy registry router, mounted under /copies.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegisterCopy)
	r.Get("/", h.handleListCopies)
	r.Get("/availability", h.handleAvailability)
	r.Get("/{copyID}", h.handleGetCopy)
	r.Post("/{copyID}/restore", h.handleRestore)
	r.Post("/{copyID}/condition", h.handleMarkCondition)
	r.Delete("/{copyID}", h.handleRemoveCopy)
	return r
}

func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return false
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may manage copies"))
		return false
	}
	return true
}

func (h *Handler) handleRegisterCopy(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}

	var params RegisterCopyParams
	if err := httpapi.DecodeJSON(r, &params); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	copy, err := h.service.RegisterCopy(r.Context(), params)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, copy)
}

func (h *Handler) handleGetCopy(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "copyID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	copy, err := h.service.GetCopy(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, copy)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}
	id, err := httpapi.PathID(r, "copyID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if err := h.service.Restore(r.Context(), id); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkCondition(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}
	id, err := httpapi.PathID(r, "copyID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	var req struct {
		Condition string `json:"condition"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	status, err := model.ParseCopyStatus(req.Condition)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	if err := h.service.MarkCondition(r.Context(), id, status); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveCopy(w http.ResponseWriter, r *http.Request) {
	if !h.requireStaff(w, r) {
		return
	}
	id, err := httpapi.PathID(r, "copyID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if err := h.service.RemoveCopy(r.Context(), id); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCopies(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpapi.QueryID(r, "book_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	copies, err := h.service.ListCopies(r.Context(), bookID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, copies)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpapi.QueryID(r, "book_id")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	available, err := h.service.CountAvailable(r.Context(), bookID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	total, err := h.service.CountTotal(r.Context(), bookID)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]int{
		"available": available,
		"total":     total,
	})
}
