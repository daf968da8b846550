package submission

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

const invalidSubmissionMessage = "Invalid submission data. Name is required and Total Sales must be positive."

func checkTip(tip decimal.Decimal) error {
	if !settlement.Storable(tip) {
		return common.InvalidInput("team tip too large for the current tip factor", map[string]string{"team_tip": "lt=100000000"})
	}
	return nil
}

// TipMode decides where the team tip of an edited entry comes from.
type TipMode string

const (
	// TipModeServer recomputes the tip from the current factor on every edit.
	TipModeServer TipMode = "server"
	// TipModeClient stores the tip sent by the client when present.
	TipModeClient TipMode = "client"
)

// ParseTipMode defaults to TipModeServer.
func ParseTipMode(v string) TipMode {
	if TipMode(strings.ToLower(strings.TrimSpace(v))) == TipModeClient {
		return TipModeClient
	}
	return TipModeServer
}

// SettingsReader yields the effective settings.
type SettingsReader interface {
	Current(ctx context.Context) settings.Settings
}

// SubmitInput is the payload of a new entry. The name is taken from the actor.
type SubmitInput struct {
	TotalSales         decimal.Decimal `json:"total_sales" validate:"gt=0,lt=100000000"`
	SalesCash          decimal.Decimal `json:"sales_cash" validate:"gte=0,lt=100000000"`
	ChangeFundReceived bool            `json:"change_fund_received"`
}

// UpdateInput is the payload of an edit.
type UpdateInput struct {
	Name               string           `json:"name" validate:"required,max=255"`
	TotalSales         decimal.Decimal  `json:"total_sales" validate:"gt=0,lt=100000000"`
	SalesCash          decimal.Decimal  `json:"sales_cash" validate:"gte=0,lt=100000000"`
	TeamTip            *decimal.Decimal `json:"team_tip,omitempty"`
	ChangeFundReceived bool             `json:"change_fund_received"`
}

// ListQuery is a page request.
type ListQuery struct {
	Page      int
	PageSize  int
	Sort      string
	Ascending bool
}

// Page is one page of entries plus the total row count.
type Page struct {
	Items    []Submission
	Total    int64
	Page     int
	PageSize int
}

// Service coordinates authorization, validation, calculation and persistence
// of submissions.
type Service struct {
	Repo            Repository
	Settings        SettingsReader
	TipMode         TipMode
	Logger          zerolog.Logger
	Validate        *validator.Validate
	Now             func() time.Time
	DefaultPageSize int
	MaxPageSize     int
}

// NewService wires a Service with defaults.
func NewService(repo Repository, reader SettingsReader, logger zerolog.Logger) *Service {
	return &Service{
		Repo:            repo,
		Settings:        reader,
		TipMode:         TipModeServer,
		Logger:          logger.With().Str("component", "submission").Logger(),
		Validate:        common.NewValidator(),
		Now:             time.Now,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) settings(ctx context.Context) settings.Settings {
	if s.Settings == nil {
		return settings.Defaults()
	}
	return s.Settings.Current(ctx)
}

func (s *Service) validate(v any) error {
	validate := s.Validate
	if validate == nil {
		validate = common.NewValidator()
	}
	if err := validate.Struct(v); err != nil {
		return common.InvalidInput(invalidSubmissionMessage, common.FieldErrors(err))
	}
	return nil
}

func (s *Service) storageError(op string, err error) error {
	s.Logger.Error().Err(err).Str("operation", op).Msg("submission storage failure")
	return common.Storage(err)
}

func record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, common.ErrForbidden):
		result = "forbidden"
	case errors.Is(err, common.ErrNotFound):
		result = "not_found"
	case errors.Is(err, common.ErrInvalidInput):
		result = "invalid"
	default:
		result = "error"
	}
	obs.RecordSubmissionOp(op, result)
}

func ownerOf(actor authz.Actor) string {
	if actor.Authenticated() {
		return actor.ID
	}
	return authz.GuestOwner
}

// Submit records a new entry and returns its id.
func (s *Service) Submit(ctx context.Context, actor authz.Actor, in SubmitInput) (id uuid.UUID, err error) {
	defer func() { record("submit", err) }()

	if !authz.CanSubmit(actor) {
		return uuid.Nil, common.Forbidden("you are not allowed to submit entries")
	}
	in.TotalSales = settlement.Round(in.TotalSales)
	in.SalesCash = settlement.Round(in.SalesCash)
	if err := s.validate(in); err != nil {
		return uuid.Nil, err
	}

	cfg := s.settings(ctx)
	tip, err := settlement.ComputeTeamTip(in.TotalSales, cfg.TipFactorPercent)
	if err != nil {
		return uuid.Nil, err
	}
	if err := checkTip(tip); err != nil {
		return uuid.Nil, err
	}
	now := s.now()
	sub := Submission{
		Name:               actor.Name(),
		TotalSales:         in.TotalSales,
		SalesCash:          in.SalesCash,
		TeamTip:            tip,
		ChangeFundReceived: in.ChangeFundReceived,
		OwnerID:            ownerOf(actor),
		CreatedAt:          now,
		LastModifiedAt:     now,
	}
	if in.ChangeFundReceived {
		sub.ChangeFundSnapshot = decimal.NewNullDecimal(cfg.ChangeFundAmount)
	}

	id, err = s.Repo.CreateSubmission(ctx, sub)
	if err != nil {
		return uuid.Nil, s.storageError("submit", err)
	}
	s.Logger.Info().Str("submission_id", id.String()).Str("owner_id", sub.OwnerID).Msg("submission created")
	return id, nil
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Submission, error) {
	sub, err := s.Repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return Submission{}, common.NotFound("submission not found")
		}
		return Submission{}, s.storageError("get", err)
	}
	return sub, nil
}

// loadForMutation checks existence before authorization.
func (s *Service) loadForMutation(ctx context.Context, actor authz.Actor, id uuid.UUID) (Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if !authz.CanMutate(actor, sub.OwnerID) {
		return Submission{}, common.Forbidden("you can only change your own entries")
	}
	return sub, nil
}

// Update overwrites the mutable fields of an entry and returns the stored state.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (sub Submission, err error) {
	defer func() { record("update", err) }()

	sub, err = s.loadForMutation(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.TotalSales = settlement.Round(in.TotalSales)
	in.SalesCash = settlement.Round(in.SalesCash)
	if err := s.validate(in); err != nil {
		return Submission{}, err
	}
	if in.TeamTip != nil && in.TeamTip.IsNegative() {
		return Submission{}, common.InvalidInput(invalidSubmissionMessage, map[string]string{"team_tip": "gte=0"})
	}

	cfg := s.settings(ctx)
	tip, err := settlement.ComputeTeamTip(in.TotalSales, cfg.TipFactorPercent)
	if err != nil {
		return Submission{}, err
	}
	if s.TipMode == TipModeClient && in.TeamTip != nil {
		tip = settlement.Round(*in.TeamTip)
	}
	if err := checkTip(tip); err != nil {
		return Submission{}, err
	}

	switch {
	case !in.ChangeFundReceived:
		sub.ChangeFundSnapshot = decimal.NullDecimal{}
	case !sub.ChangeFundReceived || !sub.ChangeFundSnapshot.Valid:
		sub.ChangeFundSnapshot = decimal.NewNullDecimal(cfg.ChangeFundAmount)
	}
	sub.Name = in.Name
	sub.TotalSales = in.TotalSales
	sub.SalesCash = in.SalesCash
	sub.TeamTip = tip
	sub.ChangeFundReceived = in.ChangeFundReceived
	sub.LastModifiedAt = s.now()

	if err := s.Repo.UpdateSubmission(ctx, sub); err != nil {
		if errors.Is(err, ErrNoRecord) {
			return Submission{}, common.NotFound("submission not found")
		}
		return Submission{}, s.storageError("update", err)
	}
	return sub, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) (err error) {
	defer func() { record("delete", err) }()

	if _, err := s.loadForMutation(ctx, actor, id); err != nil {
		return err
	}
	if err := s.Repo.DeleteSubmission(ctx, id); err != nil {
		if errors.Is(err, ErrNoRecord) {
			return common.NotFound("submission not found")
		}
		return s.storageError("delete", err)
	}
	s.Logger.Info().Str("submission_id", id.String()).Str("actor_id", actor.ID).Msg("submission deleted")
	return nil
}

// ClearAll removes every entry in one atomic operation and returns the count.
func (s *Service) ClearAll(ctx context.Context, actor authz.Actor) (n int64, err error) {
	defer func() { record("clear_all", err) }()

	if !authz.CanClearAll(actor) {
		return 0, common.Forbidden("only administrators can clear all entries")
	}
	n, err = s.Repo.ClearSubmissions(ctx)
	if err != nil {
		return 0, s.storageError("clear_all", err)
	}
	s.Logger.Warn().Int64("deleted", n).Str("actor_id", actor.ID).Msg("all submissions cleared")
	return n, nil
}

// List returns one page of entries, newest first unless another order is asked for.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	field, ok := ParseSortField(q.Sort)
	if !ok {
		return Page{}, common.InvalidInput("unknown sort field", map[string]string{"sort": q.Sort})
	}
	size := q.PageSize
	if size <= 0 {
		size = s.DefaultPageSize
	}
	if size <= 0 {
		size = 20
	}
	if s.MaxPageSize > 0 && size > s.MaxPageSize {
		size = s.MaxPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	if maxPage := math.MaxInt/size + 1; page > maxPage {
		page = maxPage
	}
	items, total, err := s.Repo.ListSubmissions(ctx, ListParams{
		Offset:    (page - 1) * size,
		Limit:     size,
		Sort:      field,
		Ascending: q.Ascending,
	})
	if err != nil {
		return Page{}, s.storageError("list", err)
	}
	return Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// ExportAll returns every entry, newest first.
func (s *Service) ExportAll(ctx context.Context) ([]Submission, error) {
	items, err := s.Repo.ListAllSubmissions(ctx)
	if err != nil {
		return nil, s.storageError("export", err)
	}
	return items, nil
}

// CreatedBetween returns the entries created in [from, to).
func (s *Service) CreatedBetween(ctx context.Context, from, to time.Time) ([]Submission, error) {
	items, err := s.Repo.ListSubmissionsCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, s.storageError("created_between", err)
	}
	return items, nil
}

// Totals aggregates every entry with the current settings. It returns nil
// when there are no entries.
func (s *Service) Totals(ctx context.Context) (*settlement.Totals, error) {
	items, err := s.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	return Aggregate(items, s.settings(ctx)), nil
}

// Aggregate sums items with the given settings.
func Aggregate(items []Submission, cfg settings.Settings) *settlement.Totals {
	entries := make([]settlement.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.Entry())
	}
	return settlement.ComputeAggregateTotals(entries, cfg.Rates())
}
