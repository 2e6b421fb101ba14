// internal/httpapi/respond.go

// Package httpapi holds the helpers shared by the domain handlers: JSON
// encoding, error-kind to status mapping, actor extraction, and middleware.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"libracore/internal/liberr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// RespondError maps an error's kind to an HTTP status and writes it.
func RespondError(w http.ResponseWriter, err error) {
	RespondJSON(w, StatusForError(err), map[string]string{
		"error": err.Error(),
		"kind":  liberr.KindOf(err).String(),
	})
}

// StatusForError maps the error taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	switch liberr.KindOf(err) {
	case liberr.KindNotFound:
		return http.StatusNotFound
	case liberr.KindConflict, liberr.KindUnavailable:
		return http.StatusConflict
	case liberr.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case liberr.KindValidation:
		return http.StatusBadRequest
	case liberr.KindConcurrency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a JSON request body into target.
func DecodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return liberr.Wrap(liberr.KindValidation, "malformed request body", err)
	}
	return nil
}

// Actor identifies who is performing a request. The core records ids and
// trusts the role tag; authentication happens upstream.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Role tags supplied by the identity source.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleUser      = "user"
)

// ActorFromRequest reads the actor headers set by the identity source.
func ActorFromRequest(r *http.Request) (Actor, error) {
	raw := r.Header.Get("X-Actor-Id")
	if raw == "" {
		return Actor{}, liberr.Validationf("missing X-Actor-Id header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Actor{}, liberr.Validationf("invalid X-Actor-Id header")
	}
	role := r.Header.Get("X-Actor-Role")
	if role == "" {
		role = RoleUser
	}
	return Actor{ID: id, Role: role}, nil
}

// IsStaff reports whether the actor may perform desk operations.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleLibrarian
}
