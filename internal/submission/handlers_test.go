package submission

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/identity"
)

func newTestRouter(t *testing.T, actor authz.Actor) (http.Handler, *Service, *memRepo) {
	t.Helper()
	svc, repo, _ := newTestService(t)
	h := &Handler{
		Svc:       svc,
		Presenter: Presenter{Logger: zerolog.Nop()},
		Now:       func() time.Time { return time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC) },
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithActor(req.Context(), actor)))
		})
	})
	r.Get("/submissions", h.List)
	r.Get("/submissions/totals", h.Totals)
	r.Get("/submissions/export.csv", h.ExportCSV)
	r.Get("/submissions/export.xlsx", h.ExportXLSX)
	r.Get("/submissions/{id}", h.Get)
	r.Post("/submissions", h.Create)
	r.Put("/submissions/{id}", h.Update)
	r.Delete("/submissions/{id}", h.Delete)
	r.Delete("/submissions", h.ClearAll)
	return r, svc, repo
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAndGet(t *testing.T) {
	h, _, repo := newTestRouter(t, author)

	rec := do(t, h, http.MethodPost, "/submissions", `{"total_sales":"1000","sales_cash":30,"change_fund_received":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["data"].(map[string]any)["id"].(string)
	require.Len(t, repo.rows, 1)
	require.Equal(t, "/api/v1/submissions/"+id, rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/submissions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "Mia", view["name"])
	require.Equal(t, "20.00", view["team_tip"])
	require.Equal(t, "150.00", view["cash_out"])
	require.Equal(t, "100.00", view["change_fund_amount"])
	require.Equal(t, true, view["can_edit"])
}

func TestCreateRejectsBadPayload(t *testing.T) {
	h, _, _ := newTestRouter(t, author)

	rec := do(t, h, http.MethodPost, "/submissions", `{"total_sales":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "INVALID_INPUT", body["error"].(map[string]any)["code"])

	rec = do(t, h, http.MethodPost, "/submissions", `{"total_sales":10,"team_tip":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/submissions", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateForbiddenForGuest(t *testing.T) {
	h, _, repo := newTestRouter(t, authz.Anonymous())
	rec := do(t, h, http.MethodPost, "/submissions", `{"total_sales":10}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, repo.rows)
}

func TestGetUnknownOrMalformedID(t *testing.T) {
	h, _, _ := newTestRouter(t, author)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/submissions/not-a-uuid", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/submissions/6f1c7c1e-0000-4000-8000-000000000001", "").Code)
}

func TestListAndTotals(t *testing.T) {
	h, svc, _ := newTestRouter(t, other)

	rec := do(t, h, http.MethodGet, "/submissions/totals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody(t, rec)["data"])

	seed(t, svc, author, "100", false)
	seed(t, svc, other, "200", true)

	rec = do(t, h, http.MethodGet, "/submissions?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, true, items[0].(map[string]any)["can_edit"])
	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 2, pagination["total_items"])

	rec = do(t, h, http.MethodGet, "/submissions?sort=bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/submissions/totals", "")
	totals := decodeBody(t, rec)["data"].(map[string]any)
	require.EqualValues(t, 2, totals["count"])
	require.Equal(t, "300.00", totals["total_sales"])
}

func TestUpdateDeleteAndClear(t *testing.T) {
	h, svc, repo := newTestRouter(t, author)
	mine := seed(t, svc, author, "100", false)
	theirs := seed(t, svc, other, "100", false)

	rec := do(t, h, http.MethodPut, "/submissions/"+theirs.String(), `{"name":"X","total_sales":5}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPut, "/submissions/"+mine.String(), `{"name":"Mia B","total_sales":50,"sales_cash":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "Mia B", view["name"])
	require.Equal(t, "1.00", view["team_tip"])

	rec = do(t, h, http.MethodDelete, "/submissions/"+mine.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/submissions/"+mine.String(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/submissions", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, repo.rows, 1)
}

func TestClearAllAsAdmin(t *testing.T) {
	h, svc, repo := newTestRouter(t, admin)
	seed(t, svc, author, "100", false)

	rec := do(t, h, http.MethodDelete, "/submissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decodeBody(t, rec)["data"].(map[string]any)["deleted"])
	require.Empty(t, repo.rows)
}

func TestExportDownloads(t *testing.T) {
	h, svc, _ := newTestRouter(t, author)
	seed(t, svc, author, "100", true)

	rec := do(t, h, http.MethodGet, "/submissions/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="gastro-rechner-submissions-2026-10-16.csv"`, rec.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\ufeff")))
	require.Contains(t, rec.Body.String(), "Mia,100.00,10.00,2.00,Yes,")

	rec = do(t, h, http.MethodGet, "/submissions/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestExportStorageFailure(t *testing.T) {
	h, _, repo := newTestRouter(t, author)
	repo.fail = errDown

	rec := do(t, h, http.MethodGet, "/submissions/export.csv", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}
