package storage

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	RunRepository
	RecordRepository
	Close() error
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// SaveRun inserts or updates a run
	SaveRun(run *Run) error

	// GetRun retrieves a run by ID, returning ErrNotFound when absent
	GetRun(runID string) (*Run, error)

	// ListRuns returns runs matching the given filters with pagination
	ListRuns(filters RunFilters) (*RunListResult, error)

	// DeleteRun removes a run and its records
	DeleteRun(runID string) error

	// GetStats returns aggregate statistics across runs
	GetStats() (*Stats, error)
}

// RecordRepository handles the per-run reconciliation records
type RecordRepository interface {
	// SaveRecords replaces the stored records for a run
	SaveRecords(runID string, records []*RecordRow) error

	// ListRecords returns a run's records matching the given filters
	ListRecords(runID string, filters RecordFilters) (*RecordListResult, error)
}

// RunFilters defines filters for listing runs
type RunFilters struct {
	Status string // Filter by status (empty = all)
	Limit  int    // Max results (0 = default 50)
	Offset int    // Pagination offset
}

// RunListResult contains paginated run results
type RunListResult struct {
	Runs       []*Run `json:"runs"`
	TotalCount int    `json:"total_count"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// RecordFilters defines filters for listing a run's records
type RecordFilters struct {
	Classification string // Filter by classification (empty = all)
	Flag           string // Only records carrying this flag (empty = all)
	Limit          int    // Max results (0 = default 50)
	Offset         int    // Pagination offset
	OrderBy        string // Sort field: "record_id", "variance", "paid" (default: "record_id")
	OrderDesc      bool   // Sort descending (default: false)
}

// RecordListResult contains paginated record results
type RecordListResult struct {
	Records    []*RecordRow `json:"records"`
	TotalCount int          `json:"total_count"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}
