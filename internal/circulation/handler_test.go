// internal/circulation/handler_test.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/fines"
	"libracore/internal/httpapi"
	"libracore/internal/model"
	"libracore/internal/notify"
	"libracore/internal/store"
	"libracore/internal/store/memory"
)

func newHandlerFixture(t *testing.T) (*httptest.Server, uuid.UUID) {
	t.Helper()
	m := memory.New()
	logger := slog.New(slog.DiscardHandler)
	svc := NewService(m, fines.NewService(m, logger), notify.NopNotifier{}, logger, DefaultConfig())

	bookID := uuid.New()
	require.NoError(t, m.Within(context.Background(), func(tx store.Tx) error {
		if err := tx.Books().Insert(context.Background(), &model.Book{
			ID: bookID, Title: "Solaris", ISBN: "978-0156027601",
		}); err != nil {
			return err
		}
		return tx.Copies().Insert(context.Background(), &model.BookCopy{
			ID: uuid.New(), BookID: bookID, CopyNumber: 1, Status: model.CopyAvailable,
		})
	}))

	srv := httptest.NewServer(NewHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv, bookID
}

func postCheckout(t *testing.T, srv *httptest.Server, role string, bookID, borrowerID uuid.UUID) *http.Response {
	t.Helper()
	body := fmt.Sprintf(`{"book_id":%q,"borrower_id":%q}`, bookID, borrowerID)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", role)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleCheckout(t *testing.T) {
	srv, bookID := newHandlerFixture(t)

	resp := postCheckout(t, srv, httpapi.RoleLibrarian, bookID, uuid.New())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var borrowing model.Borrowing
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&borrowing))
	assert.Equal(t, bookID, borrowing.BookID)
}

func TestHandleCheckoutRequiresStaff(t *testing.T) {
	srv, bookID := newHandlerFixture(t)

	resp := postCheckout(t, srv, httpapi.RoleUser, bookID, uuid.New())
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleCheckoutNoCopyLeft(t *testing.T) {
	srv, bookID := newHandlerFixture(t)

	resp := postCheckout(t, srv, httpapi.RoleLibrarian, bookID, uuid.New())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postCheckout(t, srv, httpapi.RoleLibrarian, bookID, uuid.New())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleReturnUnknownBorrowing(t *testing.T) {
	srv, _ := newHandlerFixture(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/"+uuid.NewString()+"/return", nil)
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", httpapi.RoleLibrarian)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
