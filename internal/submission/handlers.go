package submission

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/export"
	"github.com/noah-isme/gastro-rechner/internal/identity"
)

// Handler exposes REST endpoints for submissions.
type Handler struct {
	Svc       *Service
	Presenter Presenter
	// Location is the zone used for export timestamps and file names.
	Location *time.Location
	Now      func() time.Time
}

func (h *Handler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "submission service not configured", nil)
		return false
	}
	return true
}

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, common.NotFound("submission not found")
	}
	return id, nil
}

// List handles GET /api/v1/submissions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, h.Svc.DefaultPageSize, h.Svc.MaxPageSize)
	sort, asc := common.ParseSort(r)
	result, err := h.Svc.List(r.Context(), ListQuery{Page: page, PageSize: perPage, Sort: sort, Ascending: asc})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	cfg := h.Svc.settings(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       h.Presenter.Present(identity.ActorFrom(r.Context()), cfg, result.Items),
		"pagination": common.NewPagination(result.Page, result.PageSize, result.Total),
	})
}

// Totals handles GET /api/v1/submissions/totals.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	totals, err := h.Svc.Totals(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": PresentTotals(totals)})
}

// Get handles GET /api/v1/submissions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sub, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	views := h.Presenter.Present(identity.ActorFrom(r.Context()), h.Svc.settings(r.Context()), []Submission{sub})
	common.JSON(w, http.StatusOK, map[string]any{"data": views[0]})
}

// Create handles POST /api/v1/submissions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req SubmitInput
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	id, err := h.Svc.Submit(r.Context(), identity.ActorFrom(r.Context()), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/submissions/"+id.String())
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"id": id.String()}})
}

// Update handles PUT /api/v1/submissions/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req UpdateInput
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	actor := identity.ActorFrom(r.Context())
	sub, err := h.Svc.Update(r.Context(), actor, id, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	views := h.Presenter.Present(actor, h.Svc.settings(r.Context()), []Submission{sub})
	common.JSON(w, http.StatusOK, map[string]any{"data": views[0]})
}

// Delete handles DELETE /api/v1/submissions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), identity.ActorFrom(r.Context()), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAll handles DELETE /api/v1/submissions.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := h.Svc.ClearAll(r.Context(), identity.ActorFrom(r.Context()))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int64{"deleted": n}})
}

// ExportCSV handles GET /api/v1/submissions/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

// ExportXLSX handles GET /api/v1/submissions/export.xlsx.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []export.Row) error) {
	if !h.ready(w) {
		return
	}
	items, err := h.Svc.ExportAll(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	loc := h.location()
	rows := make([]export.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, export.Row{
			ID:                 item.ID.String(),
			Name:               item.Name,
			TotalSales:         item.TotalSales,
			SalesCash:          item.SalesCash,
			TeamTip:            item.TeamTip,
			ChangeFundReceived: item.ChangeFundReceived,
			CreatedAt:          item.CreatedAt.In(loc),
		})
	}
	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		h.Svc.Logger.Error().Err(err).Str("format", ext).Msg("render export")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "something went wrong", nil)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now().In(loc), ext)+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
