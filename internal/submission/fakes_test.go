package submission

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/settings"
)

type memRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]Submission
	fail  error
	lastP ListParams
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uuid.UUID]Submission{}}
}

func (m *memRepo) CreateSubmission(_ context.Context, s Submission) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return uuid.Nil, m.fail
	}
	s.ID = uuid.New()
	m.rows[s.ID] = s
	return s.ID, nil
}

func (m *memRepo) GetSubmission(_ context.Context, id uuid.UUID) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Submission{}, m.fail
	}
	s, ok := m.rows[id]
	if !ok {
		return Submission{}, ErrNoRecord
	}
	return s, nil
}

func (m *memRepo) UpdateSubmission(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ID]; !ok {
		return ErrNoRecord
	}
	m.rows[s.ID] = s
	return nil
}

func (m *memRepo) DeleteSubmission(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNoRecord
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) sorted() []Submission {
	out := make([]Submission, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memRepo) ListSubmissions(_ context.Context, p ListParams) ([]Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, 0, m.fail
	}
	m.lastP = p
	all := m.sorted()
	if p.Ascending {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	total := int64(len(all))
	if p.Offset >= len(all) {
		return []Submission{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], total, nil
}

func (m *memRepo) ListAllSubmissions(_ context.Context) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return m.sorted(), nil
}

func (m *memRepo) ListSubmissionsCreatedBetween(_ context.Context, from, to time.Time) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Submission
	for _, s := range m.sorted() {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) ClearSubmissions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	n := int64(len(m.rows))
	m.rows = map[uuid.UUID]Submission{}
	return n, nil
}

var errDown = errors.New("connection refused")

type staticSettings struct{ s settings.Settings }

func (f *staticSettings) Current(context.Context) settings.Settings { return f.s }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }
