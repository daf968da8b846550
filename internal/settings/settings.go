// Package settings owns the singleton business-rule configuration used by
// the settlement calculation.
package settings

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

// ColorScheme is the UI theme default offered to clients.
type ColorScheme string

const (
	LightCold ColorScheme = "light-cold"
	LightWarm ColorScheme = "light-warm"
	DarkCold  ColorScheme = "dark-cold"
	DarkWarm  ColorScheme = "dark-warm"
)

// NormalizeColorScheme maps the legacy "light" and "dark" values onto their
// cold variants and lower-cases the rest.
func NormalizeColorScheme(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "light":
		return string(LightCold)
	case "dark":
		return string(DarkCold)
	}
	return v
}

// Settings is the effective configuration.
type Settings struct {
	ChangeFundAmount      decimal.Decimal `json:"change_fund_amount"`
	TipFactorPercent      decimal.Decimal `json:"tip_factor_percent"`
	FlowCashToggleEnabled bool            `json:"flow_cash_toggle_enabled"`
	DefaultColorScheme    ColorScheme     `json:"default_color_scheme"`
	UpdatedAt             time.Time       `json:"updated_at,omitzero"`
}

// Defaults returns the hard-coded settings used until an administrator saves
// different values.
func Defaults() Settings {
	return Settings{
		ChangeFundAmount:      decimal.New(10000, -2),
		TipFactorPercent:      decimal.New(200, -2),
		FlowCashToggleEnabled: true,
		DefaultColorScheme:    LightCold,
	}
}

// Rates extracts the calculator inputs.
func (s Settings) Rates() settlement.Rates {
	return settlement.Rates{
		ChangeFundAmount: s.ChangeFundAmount,
		TipFactorPercent: s.TipFactorPercent,
	}
}

// Update is the administrative change request.
type Update struct {
	ChangeFundAmount      decimal.Decimal `json:"change_fund_amount" validate:"gte=0,lt=100000000"`
	TipFactorPercent      decimal.Decimal `json:"tip_factor_percent" validate:"gte=0,lt=1000"`
	FlowCashToggleEnabled bool            `json:"flow_cash_toggle_enabled"`
	DefaultColorScheme    string          `json:"default_color_scheme" validate:"required,oneof=light-cold light-warm dark-cold dark-warm"`
}
