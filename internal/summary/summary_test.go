package summary

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/submission"
)

type fakeSource struct {
	items    []submission.Submission
	err      error
	from, to time.Time
}

func (f *fakeSource) CreatedBetween(_ context.Context, from, to time.Time) ([]submission.Submission, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fixedSettings struct{ s settings.Settings }

func (f fixedSettings) Current(context.Context) settings.Settings { return f.s }

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func gauge(figure string) float64 {
	return testutil.ToFloat64(obs.DailySummary.WithLabelValues(figure))
}

func newHandler(t *testing.T, src *fakeSource) *Handler {
	t.Helper()
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	return &Handler{
		Source:   src,
		Settings: fixedSettings{s: settings.Defaults()},
		Location: berlin(t),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2026, 10, 16, 0, 5, 0, 0, berlin(t)) },
	}
}

func TestNewTask(t *testing.T) {
	task, err := NewTask("2026-10-15")
	require.NoError(t, err)
	require.Equal(t, TypeDaily, task.Type())

	var p Payload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	require.Equal(t, "2026-10-15", p.Day)

	_, err = NewTask("15.10.2026")
	require.Error(t, err)
}

func TestResolveDayDefaultsToYesterday(t *testing.T) {
	h := newHandler(t, &fakeSource{})
	day, err := h.ResolveDay(Payload{})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, berlin(t)), day)

	day, err = h.ResolveDay(Payload{Day: "2026-03-29"})
	require.NoError(t, err)
	require.Equal(t, "2026-03-29T00:00:00+01:00", day.Format(time.RFC3339))
}

func TestProcessTaskPublishesTotals(t *testing.T) {
	src := &fakeSource{items: []submission.Submission{
		{
			Name:       "Mia",
			TotalSales: decimal.RequireFromString("100"),
			SalesCash:  decimal.RequireFromString("10"),
			TeamTip:    decimal.RequireFromString("2"),
		},
		{
			Name:       "Tom",
			TotalSales: decimal.RequireFromString("50"),
			SalesCash:  decimal.RequireFromString("60"),
			TeamTip:    decimal.RequireFromString("1"),
		},
	}}
	h := newHandler(t, src)

	task, err := NewTask("2026-10-15")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	require.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, berlin(t)), src.from)
	require.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, berlin(t)), src.to)

	require.Equal(t, 2.0, gauge("count"))
	require.Equal(t, 150.0, gauge("total_sales"))
	require.Equal(t, 70.0, gauge("sales_cash"))
	require.Equal(t, 3.0, gauge("team_tip"))
}

func TestSummarizeEmptyDayResetsGauges(t *testing.T) {
	h := newHandler(t, &fakeSource{})
	obs.SetDailySummary("count", decimal.NewFromInt(9))

	totals, err := h.Summarize(context.Background(), time.Date(2026, 10, 15, 0, 0, 0, 0, berlin(t)))
	require.NoError(t, err)
	require.Nil(t, totals)
	require.Zero(t, gauge("count"))
	require.Zero(t, gauge("cash_out"))
}

func TestProcessTaskErrors(t *testing.T) {
	h := newHandler(t, &fakeSource{err: errors.New("db down")})

	task, err := NewTask("")
	require.NoError(t, err)
	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeDaily, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeDaily, []byte(`{"day":"yesterday"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
