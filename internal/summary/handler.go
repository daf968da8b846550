package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/settlement"
	"github.com/noah-isme/gastro-rechner/internal/submission"
)

// Source lists the entries created in [from, to).
type Source interface {
	CreatedBetween(ctx context.Context, from, to time.Time) ([]submission.Submission, error)
}

// Handler processes TypeDaily tasks.
type Handler struct {
	Source   Source
	Settings submission.SettingsReader
	Location *time.Location
	Logger   zerolog.Logger
	Now      func() time.Time
}

var _ asynq.Handler = (*Handler)(nil)

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

// ResolveDay returns midnight of the requested day in the handler's zone.
func (h *Handler) ResolveDay(p Payload) (time.Time, error) {
	loc := h.location()
	if p.Day == "" {
		y, m, d := h.now().In(loc).AddDate(0, 0, -1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(DayLayout, p.Day, loc)
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode summary payload: %v: %w", err, asynq.SkipRetry)
	}
	day, err := h.ResolveDay(p)
	if err != nil {
		return fmt.Errorf("parse summary day: %v: %w", err, asynq.SkipRetry)
	}
	_, err = h.Summarize(ctx, day)
	return err
}

// Summarize aggregates the entries of day and publishes the figures. It
// returns nil totals for a day without entries.
func (h *Handler) Summarize(ctx context.Context, day time.Time) (*settlement.Totals, error) {
	from := day
	to := day.AddDate(0, 0, 1)
	items, err := h.Source.CreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load submissions for %s: %w", day.Format(DayLayout), err)
	}
	cfg := settings.Defaults()
	if h.Settings != nil {
		cfg = h.Settings.Current(ctx)
	}
	totals := submission.Aggregate(items, cfg)
	publish(totals)

	log := h.Logger.With().Str("day", day.Format(DayLayout)).Logger()
	if totals == nil {
		log.Info().Msg("no submissions")
		return nil, nil
	}
	log.Info().
		Int("count", totals.Count).
		Str("total_sales", totals.TotalSales.StringFixed(settlement.Places)).
		Str("sales_cash", totals.SalesCash.StringFixed(settlement.Places)).
		Str("team_tip", totals.TeamTip.StringFixed(settlement.Places)).
		Str("cash_out", totals.CashOut.StringFixed(settlement.Places)).
		Msg("daily summary")
	return totals, nil
}

func publish(t *settlement.Totals) {
	if t == nil {
		t = &settlement.Totals{}
	}
	obs.SetDailySummary("count", decimal.NewFromInt(int64(t.Count)))
	obs.SetDailySummary("total_sales", t.TotalSales)
	obs.SetDailySummary("sales_cash", t.SalesCash)
	obs.SetDailySummary("team_tip", t.TeamTip)
	obs.SetDailySummary("cash_out", t.CashOut)
}
