package submission

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

// View is the client representation of an entry. Money is rendered with two
// decimal places.
type View struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	TotalSales         string    `json:"total_sales"`
	SalesCash          string    `json:"sales_cash"`
	TeamTip            string    `json:"team_tip"`
	ChangeFundReceived bool      `json:"change_fund_received"`
	ChangeFundAmount   *string   `json:"change_fund_amount"`
	CashOut            string    `json:"cash_out"`
	OwnerID            string    `json:"owner_id,omitempty"`
	CanEdit            bool      `json:"can_edit"`
	CreatedAt          time.Time `json:"created_at"`
	LastModifiedAt     time.Time `json:"last_modified_at"`
}

// TotalsView is the client representation of the summary row.
type TotalsView struct {
	Count      int    `json:"count"`
	TotalSales string `json:"total_sales"`
	SalesCash  string `json:"sales_cash"`
	TeamTip    string `json:"team_tip"`
	CashOut    string `json:"cash_out"`
}

func money(d decimal.Decimal) string { return d.StringFixed(settlement.Places) }

// Presenter renders entries for a viewer.
type Presenter struct {
	Logger zerolog.Logger
}

// Present converts items to views using cfg for the derived cash-out. The
// change-fund amount shown is the snapshot when one exists, else the live one.
func (p Presenter) Present(viewer authz.Actor, cfg settings.Settings, items []Submission) []View {
	rates := cfg.Rates()
	out := make([]View, 0, len(items))
	for _, item := range items {
		in := settlement.InputFor(item.Entry(), rates)
		cashOut, err := settlement.ComputeCashOut(in)
		if err != nil {
			p.Logger.Warn().Err(err).Str("submission_id", item.ID.String()).Msg("cash-out not computable")
		}
		if in.TipDrift() {
			obs.RecordTipDrift()
			p.Logger.Debug().
				Str("submission_id", item.ID.String()).
				Str("stored_tip", money(item.TeamTip)).
				Msg("stored tip differs from current tip factor")
		}
		v := View{
			ID:                 item.ID.String(),
			Name:               item.Name,
			TotalSales:         money(item.TotalSales),
			SalesCash:          money(item.SalesCash),
			TeamTip:            money(item.TeamTip),
			ChangeFundReceived: item.ChangeFundReceived,
			CashOut:            money(cashOut),
			OwnerID:            item.OwnerID,
			CanEdit:            authz.CanMutate(viewer, item.OwnerID),
			CreatedAt:          item.CreatedAt,
			LastModifiedAt:     item.LastModifiedAt,
		}
		if item.ChangeFundReceived {
			fund := money(in.ChangeFundAmount)
			v.ChangeFundAmount = &fund
		}
		out = append(out, v)
	}
	return out
}

// PresentTotals renders the summary row; nil stays nil.
func PresentTotals(t *settlement.Totals) *TotalsView {
	if t == nil {
		return nil
	}
	return &TotalsView{
		Count:      t.Count,
		TotalSales: money(t.TotalSales),
		SalesCash:  money(t.SalesCash),
		TeamTip:    money(t.TeamTip),
		CashOut:    money(t.CashOut),
	}
}
