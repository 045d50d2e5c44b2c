package storage

import (
	"sort"
	"strings"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	runs    map[string]*Run
	records map[string][]*RecordRow // Keyed by run_id

	// Hooks for test assertions
	SaveRunCalled     bool
	LastSavedRun      *Run
	SaveRecordsCalled bool
	DeleteRunCalled   bool

	// Error injection for testing error paths
	SaveRunErr     error
	GetRunErr      error
	ListRunsErr    error
	SaveRecordsErr error
	ListRecordsErr error
	GetStatsErr    error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:    make(map[string]*Run),
		records: make(map[string][]*RecordRow),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun saves a run to the in-memory map
func (m *MockRepository) SaveRun(run *Run) error {
	m.SaveRunCalled = true
	m.LastSavedRun = run
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	// Copy to avoid test mutations
	copied := *run
	m.runs[run.RunID] = &copied
	return nil
}

// GetRun retrieves a run from the in-memory map
func (m *MockRepository) GetRun(runID string) (*Run, error) {
	if m.GetRunErr != nil {
		return nil, m.GetRunErr
	}
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(filters RunFilters) (*RunListResult, error) {
	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}

	var runs []*Run
	for _, run := range m.runs {
		if filters.Status != "" && run.Status != filters.Status {
			continue
		}
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt != runs[j].StartedAt {
			return runs[i].StartedAt > runs[j].StartedAt
		}
		return runs[i].RunID > runs[j].RunID
	})

	total := len(runs)
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	runs = page(runs, filters.Offset, limit)

	return &RunListResult{
		Runs:       runs,
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// DeleteRun removes a run and its records
func (m *MockRepository) DeleteRun(runID string) error {
	m.DeleteRunCalled = true
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	delete(m.runs, runID)
	delete(m.records, runID)
	return nil
}

// SaveRecords replaces the stored records for a run
func (m *MockRepository) SaveRecords(runID string, records []*RecordRow) error {
	m.SaveRecordsCalled = true
	if m.SaveRecordsErr != nil {
		return m.SaveRecordsErr
	}
	copied := make([]*RecordRow, len(records))
	for i, rec := range records {
		c := *rec
		copied[i] = &c
	}
	m.records[runID] = copied
	return nil
}

// ListRecords returns a run's records with filters applied
func (m *MockRepository) ListRecords(runID string, filters RecordFilters) (*RecordListResult, error) {
	if m.ListRecordsErr != nil {
		return nil, m.ListRecordsErr
	}

	var records []*RecordRow
	for _, rec := range m.records[runID] {
		if filters.Classification != "" && rec.Classification != filters.Classification {
			continue
		}
		if filters.Flag != "" && !hasFlag(rec, filters.Flag) {
			continue
		}
		copied := *rec
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordID < records[j].RecordID
	})

	total := len(records)
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	records = page(records, filters.Offset, limit)

	return &RecordListResult{
		Records:    records,
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// GetStats aggregates over the in-memory runs
func (m *MockRepository) GetStats() (*Stats, error) {
	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}

	stats := &Stats{ClassificationCounts: make(map[string]int)}
	var rateSum float64
	for _, run := range m.runs {
		stats.TotalRuns++
		switch run.Status {
		case RunStatusCompleted:
			stats.CompletedRuns++
			rateSum += run.MatchRate
		case RunStatusFailed:
			stats.FailedRuns++
		}
		if run.StartedAt > stats.LastRunAt {
			stats.LastRunAt = run.StartedAt
		}
	}
	if stats.CompletedRuns > 0 {
		stats.AverageMatchRate = rateSum / float64(stats.CompletedRuns)
	}
	for _, records := range m.records {
		for _, rec := range records {
			stats.ClassificationCounts[rec.Classification]++
		}
	}
	return stats, nil
}

func hasFlag(rec *RecordRow, flag string) bool {
	for _, f := range rec.Flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
