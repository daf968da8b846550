// Package submission implements the lifecycle of daily sales entries.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

// ErrNoRecord is returned by a Repository when the addressed row does not
// exist, including rows removed by a concurrent delete.
var ErrNoRecord = errors.New("submission: no record")

// Submission is one stored daily sales entry.
type Submission struct {
	ID                 uuid.UUID
	Name               string
	TotalSales         decimal.Decimal
	SalesCash          decimal.Decimal
	TeamTip            decimal.Decimal
	ChangeFundReceived bool
	// ChangeFundSnapshot is the change-fund amount in force when the entry
	// was marked as received. Invalid when not received.
	ChangeFundSnapshot decimal.NullDecimal
	// OwnerID is the creating actor, or authz.GuestOwner.
	OwnerID        string
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// Entry returns the calculator view of the submission.
func (s Submission) Entry() settlement.Entry {
	return settlement.Entry{
		TotalSales:         s.TotalSales,
		SalesCash:          s.SalesCash,
		TeamTip:            s.TeamTip,
		ChangeFundReceived: s.ChangeFundReceived,
		ChangeFundSnapshot: s.ChangeFundSnapshot,
	}
}

// SortField is a whitelisted list ordering.
type SortField string

const (
	SortCreatedAt  SortField = "created_at"
	SortName       SortField = "name"
	SortTotalSales SortField = "total_sales"
	SortSalesCash  SortField = "sales_cash"
	SortTeamTip    SortField = "team_tip"
)

// ParseSortField maps a client value onto a SortField. The legacy "timestamp"
// key is accepted as created_at.
func ParseSortField(v string) (SortField, bool) {
	switch SortField(v) {
	case "", "timestamp", SortCreatedAt:
		return SortCreatedAt, true
	case SortName, SortTotalSales, SortSalesCash, SortTeamTip:
		return SortField(v), true
	}
	return "", false
}

// ListParams selects one page of submissions.
type ListParams struct {
	Offset    int
	Limit     int
	Sort      SortField
	Ascending bool
}

// Repository is the persistence boundary for submissions.
type Repository interface {
	CreateSubmission(ctx context.Context, s Submission) (uuid.UUID, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (Submission, error)
	UpdateSubmission(ctx context.Context, s Submission) error
	DeleteSubmission(ctx context.Context, id uuid.UUID) error
	ListSubmissions(ctx context.Context, p ListParams) ([]Submission, int64, error)
	ListAllSubmissions(ctx context.Context) ([]Submission, error)
	ListSubmissionsCreatedBetween(ctx context.Context, from, to time.Time) ([]Submission, error)
	ClearSubmissions(ctx context.Context) (int64, error)
}
