package settings

import (
	"net/http"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/identity"
)

// Handler exposes the settings endpoints.
type Handler struct {
	Store *Store
}

// Viewer describes what the calling actor may do; clients use it to decide
// which controls to render.
type Viewer struct {
	CurrentUser string `json:"current_user"`
	UserID      string `json:"user_id"`
	IsLoggedIn  bool   `json:"is_logged_in"`
	CanSubmit   bool   `json:"can_submit"`
	IsAdmin     bool   `json:"is_admin"`
}

func viewerFor(a authz.Actor) Viewer {
	return Viewer{
		CurrentUser: a.Name(),
		UserID:      a.ID,
		IsLoggedIn:  a.Authenticated(),
		CanSubmit:   authz.CanSubmit(a),
		IsAdmin:     a.IsAdmin(),
	}
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "settings store not configured", nil)
		return
	}
	actor := identity.ActorFrom(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{
		"data":   h.Store.Current(r.Context()),
		"viewer": viewerFor(actor),
	})
}

// Update handles PUT /api/v1/admin/settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "settings store not configured", nil)
		return
	}
	var req Update
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	saved, err := h.Store.Update(r.Context(), identity.ActorFrom(r.Context()), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}
