package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/gastro-rechner/internal/settings"
)

const settingsColumns = `change_fund_amount, tip_factor_percent, flow_cash_toggle_enabled, default_color_scheme, updated_at`

// SettingsStore implements settings.Repository on the singleton row.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore constructs a SettingsStore backed by a pgx pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

var _ settings.Repository = (*SettingsStore)(nil)

func scanSettings(row scanner) (settings.Settings, error) {
	var (
		out       settings.Settings
		fund, tip pgtype.Numeric
		scheme    string
	)
	if err := row.Scan(&fund, &tip, &out.FlowCashToggleEnabled, &scheme, &out.UpdatedAt); err != nil {
		return settings.Settings{}, err
	}
	var err error
	if out.ChangeFundAmount, err = fromNumeric(fund); err != nil {
		return settings.Settings{}, err
	}
	if out.TipFactorPercent, err = fromNumeric(tip); err != nil {
		return settings.Settings{}, err
	}
	out.DefaultColorScheme = settings.ColorScheme(settings.NormalizeColorScheme(scheme))
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

// GetSettings reads the singleton row.
func (s *SettingsStore) GetSettings(ctx context.Context) (settings.Settings, error) {
	if s == nil || s.pool == nil {
		return settings.Settings{}, ErrStoreUnavailable
	}
	out, err := scanSettings(s.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.Settings{}, settings.ErrNoSettings
	}
	return out, err
}

// UpsertSettings writes the singleton row and returns what was stored.
func (s *SettingsStore) UpsertSettings(ctx context.Context, in settings.Settings) (settings.Settings, error) {
	if s == nil || s.pool == nil {
		return settings.Settings{}, ErrStoreUnavailable
	}
	return scanSettings(s.pool.QueryRow(ctx, `INSERT INTO settings (id, change_fund_amount, tip_factor_percent, flow_cash_toggle_enabled, default_color_scheme, updated_at)
VALUES (1, $1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    change_fund_amount = EXCLUDED.change_fund_amount,
    tip_factor_percent = EXCLUDED.tip_factor_percent,
    flow_cash_toggle_enabled = EXCLUDED.flow_cash_toggle_enabled,
    default_color_scheme = EXCLUDED.default_color_scheme,
    updated_at = EXCLUDED.updated_at
RETURNING `+settingsColumns,
		toNumeric(in.ChangeFundAmount),
		toNumeric(in.TipFactorPercent),
		in.FlowCashToggleEnabled,
		string(in.DefaultColorScheme),
		in.UpdatedAt,
	))
}

// InsertDefaultSettings creates the row unless one already exists.
func (s *SettingsStore) InsertDefaultSettings(ctx context.Context, in settings.Settings) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO settings (id, change_fund_amount, tip_factor_percent, flow_cash_toggle_enabled, default_color_scheme, updated_at)
VALUES (1, $1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		toNumeric(in.ChangeFundAmount),
		toNumeric(in.TipFactorPercent),
		in.FlowCashToggleEnabled,
		string(in.DefaultColorScheme),
		in.UpdatedAt,
	)
	return err
}
