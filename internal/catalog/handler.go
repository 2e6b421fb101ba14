// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"libracore/internal/httpapi"
	"libracore/internal/liberr"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the catalog router, mounted under /books.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleAddBook)
	r.Get("/", h.handleListBooks)
	r.Get("/{bookID}", h.handleGetBook)
	r.Put("/{bookID}", h.handleUpdateBook)
	r.Delete("/{bookID}", h.handleRemoveBook)
	return r
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may add books"))
		return
	}

	var params AddBookParams
	if err := httpapi.DecodeJSON(r, &params); err != nil {
		httpapi.RespondError(w, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), params)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "bookID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may edit books"))
		return
	}

	id, err := httpapi.PathID(r, "bookID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if err := httpapi.DecodeJSON(r, book); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	book.ID = id

	updated, err := h.service.UpdateBook(r.Context(), book)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.ActorFromRequest(r)
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if !actor.IsStaff() {
		httpapi.RespondError(w, liberr.BusinessRulef("only staff may remove books"))
		return
	}

	id, err := httpapi.PathID(r, "bookID")
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	if err := h.service.RemoveBook(r.Context(), id); err != nil {
		httpapi.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		httpapi.RespondError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, books)
}
