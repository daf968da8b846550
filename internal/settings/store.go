package settings

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

// ErrNoSettings is returned by a Repository when the singleton row is absent.
var ErrNoSettings = errors.New("settings: no row")

// Repository persists the settings row.
type Repository interface {
	GetSettings(ctx context.Context) (Settings, error)
	UpsertSettings(ctx context.Context, s Settings) (Settings, error)
	InsertDefaultSettings(ctx context.Context, s Settings) error
}

// Store reads and writes settings. Reads never fail: a missing row or an
// unreachable database yields Defaults.
type Store struct {
	Repo     Repository
	Logger   zerolog.Logger
	Validate *validator.Validate
	Now      func() time.Time
}

// NewStore wires a Store with the shared validator.
func NewStore(repo Repository, logger zerolog.Logger) *Store {
	return &Store{
		Repo:     repo,
		Logger:   logger.With().Str("component", "settings").Logger(),
		Validate: common.NewValidator(),
		Now:      time.Now,
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Current returns the effective settings.
func (s *Store) Current(ctx context.Context) Settings {
	if s == nil || s.Repo == nil {
		return Defaults()
	}
	current, err := s.Repo.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSettings) {
			s.Logger.Warn().Err(err).Msg("settings read failed, using defaults")
		}
		return Defaults()
	}
	return current
}

// Bootstrap creates the settings row with Defaults when none exists.
func (s *Store) Bootstrap(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	d := Defaults()
	d.UpdatedAt = s.now()
	if err := s.Repo.InsertDefaultSettings(ctx, d); err != nil {
		return common.Storage(err)
	}
	return nil
}

// Update validates and persists new settings. Only administrators may call it.
func (s *Store) Update(ctx context.Context, actor authz.Actor, in Update) (Settings, error) {
	if !authz.CanManageSettings(actor) {
		obs.RecordSettingsUpdate("forbidden")
		return Settings{}, common.Forbidden("only administrators can change settings")
	}
	in.DefaultColorScheme = NormalizeColorScheme(in.DefaultColorScheme)
	// Bounds apply to the stored, rounded values.
	in.ChangeFundAmount = settlement.Round(in.ChangeFundAmount)
	in.TipFactorPercent = settlement.Round(in.TipFactorPercent)
	validate := s.Validate
	if validate == nil {
		validate = common.NewValidator()
	}
	if err := validate.Struct(in); err != nil {
		obs.RecordSettingsUpdate("invalid")
		return Settings{}, common.Validation("invalid settings", common.FieldErrors(err))
	}
	next := Settings{
		ChangeFundAmount:      in.ChangeFundAmount,
		TipFactorPercent:      in.TipFactorPercent,
		FlowCashToggleEnabled: in.FlowCashToggleEnabled,
		DefaultColorScheme:    ColorScheme(in.DefaultColorScheme),
		UpdatedAt:             s.now(),
	}
	saved, err := s.Repo.UpsertSettings(ctx, next)
	if err != nil {
		obs.RecordSettingsUpdate("error")
		s.Logger.Error().Err(err).Msg("persist settings")
		return Settings{}, common.Storage(err)
	}
	obs.RecordSettingsUpdate("ok")
	s.Logger.Info().
		Str("actor_id", actor.ID).
		Str("change_fund_amount", saved.ChangeFundAmount.StringFixed(2)).
		Str("tip_factor_percent", saved.TipFactorPercent.StringFixed(2)).
		Msg("settings updated")
	return saved, nil
}
