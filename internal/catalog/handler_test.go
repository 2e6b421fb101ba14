// internal/catalog/handler_test.go
package catalog_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/catalog"
	"libracore/internal/httpapi"
	"libracore/internal/model"
	"libracore/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, catalog.Service) {
	t.Helper()
	svc := catalog.NewService(memory.New())
	srv := httptest.NewServer(catalog.NewHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", role)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleAddBook(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/", httpapi.RoleLibrarian,
		`{"title":"Kindred","isbn":"978-0807083697","authors":["Octavia E. Butler"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var book model.Book
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&book))
	assert.Equal(t, "Kindred", book.Title)
	assert.NotEqual(t, uuid.Nil, book.ID)
}

func TestHandleAddBookRequiresStaff(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/", httpapi.RoleUser,
		`{"title":"Kindred","isbn":"978-0807083697"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleAddBookDuplicateISBN(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/", httpapi.RoleLibrarian, `{"title":"A","isbn":"isbn-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/", httpapi.RoleLibrarian, `{"title":"B","isbn":"isbn-1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleGetBook(t *testing.T) {
	srv, svc := newTestServer(t)

	book, err := svc.AddBook(t.Context(), catalog.AddBookParams{Title: "Kindred", ISBN: "isbn-1"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/"+book.ID.String(), httpapi.RoleUser, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Book
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, book.ID, got.ID)
}

func TestHandleGetBookNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/"+uuid.NewString(), httpapi.RoleUser, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetBookBadID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/not-a-uuid", httpapi.RoleUser, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListBooksFilter(t *testing.T) {
	srv, svc := newTestServer(t)

	_, err := svc.AddBook(t.Context(), catalog.AddBookParams{Title: "Parable of the Sower", ISBN: "isbn-1"})
	require.NoError(t, err)
	_, err = svc.AddBook(t.Context(), catalog.AddBookParams{Title: "Kindred", ISBN: "isbn-2"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/?title=parable", httpapi.RoleUser, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var books []model.Book
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&books))
	require.Len(t, books, 1)
	assert.Equal(t, "Parable of the Sower", books[0].Title)
}
