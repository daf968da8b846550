// Package settlement computes the team tip and the cash-out reconciliation
// figure for daily sales entries. All functions are pure.
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/common"
)

// Places is the number of decimal places every money result is rounded to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// AmountLimit is the exclusive upper bound of a stored money amount.
var AmountLimit = decimal.NewFromInt(100_000_000)

// Storable reports whether d fits a money column after rounding.
func Storable(d decimal.Decimal) bool {
	return Round(d).LessThan(AmountLimit)
}

// Rates are the settings-derived inputs of the calculation.
type Rates struct {
	ChangeFundAmount decimal.Decimal
	TipFactorPercent decimal.Decimal
}

// Entry is the part of a stored submission the calculator needs.
type Entry struct {
	TotalSales         decimal.Decimal
	SalesCash          decimal.Decimal
	TeamTip            decimal.Decimal
	ChangeFundReceived bool
	ChangeFundSnapshot decimal.NullDecimal
}

// CashOutInput feeds ComputeCashOut.
type CashOutInput struct {
	TotalSales         decimal.Decimal
	SalesCash          decimal.Decimal
	TeamTip            decimal.Decimal
	ChangeFundReceived bool
	ChangeFundAmount   decimal.Decimal
	TipFactorPercent   decimal.Decimal
}

// Totals is the aggregate summary row over a set of entries.
type Totals struct {
	Count      int
	TotalSales decimal.Decimal
	SalesCash  decimal.Decimal
	TeamTip    decimal.Decimal
	CashOut    decimal.Decimal
}

// Round applies the money rounding rule (half away from zero, 2 places).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return common.InvalidInput(fmt.Sprintf("%s must not be negative", field), map[string]string{field: "gte=0"})
	}
	return nil
}

func tipOf(totalSales, tipFactorPercent decimal.Decimal) decimal.Decimal {
	return totalSales.Mul(tipFactorPercent).Div(hundred)
}

// ComputeTeamTip returns totalSales × tipFactorPercent / 100 rounded to cents.
func ComputeTeamTip(totalSales, tipFactorPercent decimal.Decimal) (decimal.Decimal, error) {
	if err := nonNegative("total_sales", totalSales); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("tip_factor", tipFactorPercent); err != nil {
		return decimal.Zero, err
	}
	return Round(tipOf(totalSales, tipFactorPercent)), nil
}

// ComputeCashOut returns tip + cash sales (+ change fund when received). The
// tip term is always recomputed from TotalSales and TipFactorPercent; the
// passed TeamTip is ignored here, see TipDrift.
func ComputeCashOut(in CashOutInput) (decimal.Decimal, error) {
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"total_sales", in.TotalSales},
		{"sales_cash", in.SalesCash},
		{"change_fund", in.ChangeFundAmount},
		{"tip_factor", in.TipFactorPercent},
	} {
		if err := nonNegative(f.name, f.value); err != nil {
			return decimal.Zero, err
		}
	}
	sum := tipOf(in.TotalSales, in.TipFactorPercent).Add(in.SalesCash)
	if in.ChangeFundReceived {
		sum = sum.Add(in.ChangeFundAmount)
	}
	return Round(sum), nil
}

// TipDrift reports whether the stored tip differs from the tip the current
// factor would produce, which happens after the factor has been changed.
func (in CashOutInput) TipDrift() bool {
	return !Round(tipOf(in.TotalSales, in.TipFactorPercent)).Equal(in.TeamTip)
}

// CashOutFor derives the cash-out of a stored entry: the snapshotted change
// fund when present, otherwise the live amount from rates.
func CashOutFor(e Entry, rates Rates) (decimal.Decimal, error) {
	return ComputeCashOut(InputFor(e, rates))
}

// InputFor builds the CashOutInput of a stored entry.
func InputFor(e Entry, rates Rates) CashOutInput {
	fund := rates.ChangeFundAmount
	if e.ChangeFundSnapshot.Valid {
		fund = e.ChangeFundSnapshot.Decimal
	}
	return CashOutInput{
		TotalSales:         e.TotalSales,
		SalesCash:          e.SalesCash,
		TeamTip:            e.TeamTip,
		ChangeFundReceived: e.ChangeFundReceived,
		ChangeFundAmount:   fund,
		TipFactorPercent:   rates.TipFactorPercent,
	}
}

// ComputeAggregateTotals sums the entries and their per-row cash-out. It
// returns nil when there is nothing to sum. Rows whose amounts are invalid
// contribute zero cash-out instead of aborting the summary.
func ComputeAggregateTotals(entries []Entry, rates Rates) *Totals {
	if len(entries) == 0 {
		return nil
	}
	t := &Totals{Count: len(entries)}
	for _, e := range entries {
		t.TotalSales = t.TotalSales.Add(e.TotalSales)
		t.SalesCash = t.SalesCash.Add(e.SalesCash)
		t.TeamTip = t.TeamTip.Add(e.TeamTip)
		if out, err := CashOutFor(e, rates); err == nil {
			t.CashOut = t.CashOut.Add(out)
		}
	}
	t.TotalSales = Round(t.TotalSales)
	t.SalesCash = Round(t.SalesCash)
	t.TeamTip = Round(t.TeamTip)
	t.CashOut = Round(t.CashOut)
	return t
}
