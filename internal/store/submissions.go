package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/gastro-rechner/internal/submission"
)

const submissionColumns = `id, name, total_sales, sales_cash, team_tip, change_fund_received, change_fund_snapshot, owner_id, created_at, last_modified_at`

// SubmissionStore implements submission.Repository.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

// NewSubmissionStore constructs a SubmissionStore backed by a pgx pool.
func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

var _ submission.Repository = (*SubmissionStore)(nil)

func (s *SubmissionStore) ready() error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	return nil
}

func scanSubmission(row scanner) (submission.Submission, error) {
	var (
		sub                        submission.Submission
		total, cash, tip, snapshot pgtype.Numeric
	)
	if err := row.Scan(&sub.ID, &sub.Name, &total, &cash, &tip, &sub.ChangeFundReceived, &snapshot, &sub.OwnerID, &sub.CreatedAt, &sub.LastModifiedAt); err != nil {
		return submission.Submission{}, err
	}
	var err error
	if sub.TotalSales, err = fromNumeric(total); err != nil {
		return submission.Submission{}, err
	}
	if sub.SalesCash, err = fromNumeric(cash); err != nil {
		return submission.Submission{}, err
	}
	if sub.TeamTip, err = fromNumeric(tip); err != nil {
		return submission.Submission{}, err
	}
	if sub.ChangeFundSnapshot, err = fromNullNumeric(snapshot); err != nil {
		return submission.Submission{}, err
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.LastModifiedAt = sub.LastModifiedAt.UTC()
	return sub, nil
}

func collectSubmissions(rows pgx.Rows) ([]submission.Submission, error) {
	defer rows.Close()
	out := make([]submission.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CreateSubmission inserts a row and returns the generated id.
func (s *SubmissionStore) CreateSubmission(ctx context.Context, sub submission.Submission) (uuid.UUID, error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO submissions (name, total_sales, sales_cash, team_tip, change_fund_received, change_fund_snapshot, owner_id, created_at, last_modified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		sub.Name,
		toNumeric(sub.TotalSales),
		toNumeric(sub.SalesCash),
		toNumeric(sub.TeamTip),
		sub.ChangeFundReceived,
		toNullNumeric(sub.ChangeFundSnapshot),
		sub.OwnerID,
		sub.CreatedAt,
		sub.LastModifiedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetSubmission fetches one row by id.
func (s *SubmissionStore) GetSubmission(ctx context.Context, id uuid.UUID) (submission.Submission, error) {
	if err := s.ready(); err != nil {
		return submission.Submission{}, err
	}
	sub, err := scanSubmission(s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return submission.Submission{}, submission.ErrNoRecord
	}
	return sub, err
}

// UpdateSubmission overwrites the mutable columns. created_at and owner_id are
// never touched.
func (s *SubmissionStore) UpdateSubmission(ctx context.Context, sub submission.Submission) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE submissions
SET name = $2, total_sales = $3, sales_cash = $4, team_tip = $5, change_fund_received = $6, change_fund_snapshot = $7, last_modified_at = $8
WHERE id = $1`,
		sub.ID,
		sub.Name,
		toNumeric(sub.TotalSales),
		toNumeric(sub.SalesCash),
		toNumeric(sub.TeamTip),
		sub.ChangeFundReceived,
		toNullNumeric(sub.ChangeFundSnapshot),
		sub.LastModifiedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return submission.ErrNoRecord
	}
	return nil
}

// DeleteSubmission removes a row by id.
func (s *SubmissionStore) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return submission.ErrNoRecord
	}
	return nil
}

var sortColumns = map[submission.SortField]string{
	submission.SortCreatedAt:  "created_at",
	submission.SortName:       "name",
	submission.SortTotalSales: "total_sales",
	submission.SortSalesCash:  "sales_cash",
	submission.SortTeamTip:    "team_tip",
}

// orderClause only ever emits whitelisted column names.
func orderClause(field submission.SortField, ascending bool) string {
	col, ok := sortColumns[field]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir)
}

// ListSubmissions returns a page of rows and the overall count.
func (s *SubmissionStore) ListSubmissions(ctx context.Context, p submission.ListParams) ([]submission.Submission, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	limit := clampPositive(p.Limit, 1, 500)
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+submissionColumns+` FROM submissions `+orderClause(p.Sort, p.Ascending)+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectSubmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAllSubmissions returns every row, newest first.
func (s *SubmissionStore) ListAllSubmissions(ctx context.Context) ([]submission.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+submissionColumns+` FROM submissions `+orderClause(submission.SortCreatedAt, false))
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ListSubmissionsCreatedBetween returns rows with from <= created_at < to.
func (s *SubmissionStore) ListSubmissionsCreatedBetween(ctx context.Context, from, to time.Time) ([]submission.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE created_at >= $1 AND created_at < $2 `+orderClause(submission.SortCreatedAt, false), from, to)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ClearSubmissions deletes every row in a single statement.
func (s *SubmissionStore) ClearSubmissions(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func clampPositive(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
