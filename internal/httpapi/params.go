// internal/httpapi/params.go
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libracore/internal/liberr"
)

// PathID parses a uuid path parameter.
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, liberr.Validationf("invalid %s path parameter", name)
	}
	return id, nil
}

// QueryID parses a uuid query parameter.
func QueryID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, liberr.Validationf("missing %s query parameter", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, liberr.Validationf("invalid %s query parameter", name)
	}
	return id, nil
}
