package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/identity"
)

type memRepo struct {
	row      *Settings
	getErr   error
	upsert   error
	inserted int
}

func (m *memRepo) GetSettings(context.Context) (Settings, error) {
	if m.getErr != nil {
		return Settings{}, m.getErr
	}
	if m.row == nil {
		return Settings{}, ErrNoSettings
	}
	return *m.row, nil
}

func (m *memRepo) UpsertSettings(_ context.Context, s Settings) (Settings, error) {
	if m.upsert != nil {
		return Settings{}, m.upsert
	}
	m.row = &s
	return s, nil
}

func (m *memRepo) InsertDefaultSettings(_ context.Context, s Settings) error {
	if m.row == nil {
		m.row = &s
		m.inserted++
	}
	return nil
}

var admin = authz.Actor{ID: "1", Roles: []string{authz.RoleAdministrator}}

func newTestStore(repo Repository) *Store {
	s := NewStore(repo, zerolog.Nop())
	s.Now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestCurrentFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()

	require.Equal(t, Defaults(), newTestStore(&memRepo{}).Current(ctx))
	require.Equal(t, Defaults(), newTestStore(&memRepo{getErr: errors.New("dial tcp: refused")}).Current(ctx))
	require.Equal(t, Defaults(), (*Store)(nil).Current(ctx))

	stored := Defaults()
	stored.TipFactorPercent = decimal.RequireFromString("3.5")
	require.True(t, stored.TipFactorPercent.Equal(newTestStore(&memRepo{row: &stored}).Current(ctx).TipFactorPercent))
}

func TestBootstrapKeepsExistingRow(t *testing.T) {
	repo := &memRepo{}
	store := newTestStore(repo)
	require.NoError(t, store.Bootstrap(context.Background()))
	require.NoError(t, store.Bootstrap(context.Background()))
	require.Equal(t, 1, repo.inserted)
	require.Equal(t, LightCold, repo.row.DefaultColorScheme)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	store := newTestStore(repo)
	in := Update{
		ChangeFundAmount:      decimal.RequireFromString("150.005"),
		TipFactorPercent:      decimal.RequireFromString("2.5"),
		FlowCashToggleEnabled: false,
		DefaultColorScheme:    "dark",
	}

	_, err := store.Update(ctx, authz.Actor{ID: "2", Roles: []string{authz.RoleAuthor}}, in)
	require.ErrorIs(t, err, common.ErrForbidden)
	require.Nil(t, repo.row)

	saved, err := store.Update(ctx, admin, in)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("150.01").Equal(saved.ChangeFundAmount))
	require.Equal(t, DarkCold, saved.DefaultColorScheme)
	require.False(t, saved.FlowCashToggleEnabled)
	require.Equal(t, store.Now(), saved.UpdatedAt)
}

func TestUpdateValidation(t *testing.T) {
	store := newTestStore(&memRepo{})
	for name, in := range map[string]Update{
		"negative fund":  {ChangeFundAmount: decimal.NewFromInt(-1), DefaultColorScheme: "light-cold"},
		"negative tip":   {TipFactorPercent: decimal.NewFromInt(-1), DefaultColorScheme: "light-cold"},
		"huge tip":       {TipFactorPercent: decimal.NewFromInt(1000), DefaultColorScheme: "light-cold"},
		"fund rounds up": {ChangeFundAmount: decimal.RequireFromString("99999999.996"), DefaultColorScheme: "light-cold"},
		"tip rounds up":  {TipFactorPercent: decimal.RequireFromString("999.996"), DefaultColorScheme: "light-cold"},
		"unknown scheme": {DefaultColorScheme: "neon"},
		"missing scheme": {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Update(context.Background(), admin, in)
			require.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestUpdateStorageFailure(t *testing.T) {
	store := newTestStore(&memRepo{upsert: errors.New("timeout")})
	_, err := store.Update(context.Background(), admin, Update{DefaultColorScheme: "light-warm"})
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestHandlers(t *testing.T) {
	store := newTestStore(&memRepo{})
	h := &Handler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data   Settings `json:"data"`
		Viewer Viewer   `json:"viewer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, decimal.NewFromInt(100).Equal(body.Data.ChangeFundAmount))
	require.Equal(t, authz.GuestName, body.Viewer.CurrentUser)
	require.False(t, body.Viewer.CanSubmit)

	payload := `{"change_fund_amount":"120","tip_factor_percent":"3","flow_cash_toggle_enabled":true,"default_color_scheme":"light-warm"}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(payload))
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(payload))
	req = req.WithContext(identity.WithActor(req.Context(), admin))
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, LightWarm, store.Current(context.Background()).DefaultColorScheme)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(`{"tip_factor_percent":"-1","default_color_scheme":"light-warm"}`))
	req = req.WithContext(identity.WithActor(req.Context(), admin))
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateHandlerRejectsUnknownFields(t *testing.T) {
	repo := &memRepo{}
	h := &Handler{Store: newTestStore(repo)}

	payload := `{"change_fund":50,"tip_factor_percent":"2","flow_cash_toggle_enabled":true,"default_color_scheme":"light-cold"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(payload))
	req = req.WithContext(identity.WithActor(req.Context(), admin))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeBadRequest)
	require.Nil(t, repo.row)
}

func TestUpdateAcceptsLargestStorableValues(t *testing.T) {
	store := newTestStore(&memRepo{})
	saved, err := store.Update(context.Background(), admin, Update{
		ChangeFundAmount:   decimal.RequireFromString("99999999.994"),
		TipFactorPercent:   decimal.RequireFromString("999.994"),
		DefaultColorScheme: "light-cold",
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("99999999.99").Equal(saved.ChangeFundAmount))
	require.True(t, decimal.RequireFromString("999.99").Equal(saved.TipFactorPercent))
}
