package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

const defaultPageSize = 50

// Storage provides SQLite database access for reconciliation runs.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// the pragma below in effect for every query
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// runMigrations applies the embedded goose migrations.
func (s *Storage) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun inserts or updates a run
func (s *Storage) SaveRun(run *Run) error {
	query := `
	INSERT OR REPLACE INTO reconciliation_runs
	(run_id, started_at, completed_at, status, total_due, total_received,
	 total_variance, match_rate, matched_transactions, total_transactions,
	 record_count, summary, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID,
		run.StartedAt,
		nullable(run.CompletedAt),
		run.Status,
		run.TotalDue,
		run.TotalReceived,
		run.TotalVariance,
		run.MatchRate,
		run.MatchedTransactions,
		run.TotalTransactions,
		run.RecordCount,
		nullable(run.Summary),
		nullable(run.ErrorMessage),
	)

	return err
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID string) (*Run, error) {
	query := `
	SELECT run_id, started_at, completed_at, status, total_due, total_received,
	       total_variance, match_rate, matched_transactions, total_transactions,
	       record_count, summary, error_message
	FROM reconciliation_runs WHERE run_id = ?
	`

	run := &Run{}
	var completedAt, summary, errorMessage sql.NullString
	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.StartedAt,
		&completedAt,
		&run.Status,
		&run.TotalDue,
		&run.TotalReceived,
		&run.TotalVariance,
		&run.MatchRate,
		&run.MatchedTransactions,
		&run.TotalTransactions,
		&run.RecordCount,
		&summary,
		&errorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.CompletedAt = completedAt.String
	run.Summary = summary.String
	run.ErrorMessage = errorMessage.String

	return run, nil
}

// ListRuns returns runs matching the given filters, newest first
func (s *Storage) ListRuns(filters RunFilters) (*RunListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	where := ""
	var args []any
	if filters.Status != "" {
		where = " WHERE status = ?"
		args = append(args, filters.Status)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reconciliation_runs`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := `
	SELECT run_id, started_at, completed_at, status, total_due, total_received,
	       total_variance, match_rate, matched_transactions, total_transactions,
	       record_count, summary, error_message
	FROM reconciliation_runs` + where + `
	ORDER BY started_at DESC, run_id DESC
	LIMIT ? OFFSET ?
	`
	rows, err := s.db.Query(query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &RunListResult{
		Runs:       []*Run{},
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}
	for rows.Next() {
		run := &Run{}
		var completedAt, summary, errorMessage sql.NullString
		err := rows.Scan(
			&run.RunID,
			&run.StartedAt,
			&completedAt,
			&run.Status,
			&run.TotalDue,
			&run.TotalReceived,
			&run.TotalVariance,
			&run.MatchRate,
			&run.MatchedTransactions,
			&run.TotalTransactions,
			&run.RecordCount,
			&summary,
			&errorMessage,
		)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = completedAt.String
		run.Summary = summary.String
		run.ErrorMessage = errorMessage.String
		result.Runs = append(result.Runs, run)
	}

	return result, rows.Err()
}

// DeleteRun removes a run; its records go with it via the foreign key
func (s *Storage) DeleteRun(runID string) error {
	result, err := s.db.Exec(`DELETE FROM reconciliation_runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRecords replaces the stored records for a run
func (s *Storage) SaveRecords(runID string, records []*RecordRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM reconciliation_records WHERE run_id = ?`, runID); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare(`
	INSERT INTO reconciliation_records
	(run_id, record_id, classification, invoice_id, tenant, period,
	 due, paid, variance, flags, txns_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if err := rec.encode(); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encoding record %s: %w", rec.RecordID, err)
		}
		_, err := stmt.Exec(
			runID,
			rec.RecordID,
			rec.Classification,
			nullable(rec.InvoiceID),
			nullable(rec.Tenant),
			nullable(rec.Period),
			rec.Due,
			rec.Paid,
			rec.Variance,
			rec.FlagsCSV,
			rec.TxnsJSON,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("saving record %s: %w", rec.RecordID, err)
		}
	}

	return tx.Commit()
}

// ListRecords returns a run's records matching the given filters
func (s *Storage) ListRecords(runID string, filters RecordFilters) (*RecordListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	where := ` WHERE run_id = ?`
	args := []any{runID}
	if filters.Classification != "" {
		where += ` AND classification = ?`
		args = append(args, filters.Classification)
	}
	if filters.Flag != "" {
		where += ` AND flags LIKE ?`
		args = append(args, "%"+filters.Flag+"%")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reconciliation_records`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	// Monetary columns are decimal strings, so numeric sorts need a cast
	orderBy := "record_id"
	switch filters.OrderBy {
	case "", "record_id":
	case "variance":
		orderBy = "CAST(variance AS REAL)"
	case "paid":
		orderBy = "CAST(paid AS REAL)"
	default:
		return nil, fmt.Errorf("unsupported order field %q", filters.OrderBy)
	}
	direction := "ASC"
	if filters.OrderDesc {
		direction = "DESC"
	}

	query := `
	SELECT id, run_id, record_id, classification, invoice_id, tenant, period,
	       due, paid, variance, flags, txns_json
	FROM reconciliation_records` + where + `
	ORDER BY ` + orderBy + ` ` + direction + `, record_id ASC
	LIMIT ? OFFSET ?
	`
	rows, err := s.db.Query(query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &RecordListResult{
		Records:    []*RecordRow{},
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}
	for rows.Next() {
		rec := &RecordRow{}
		var invoiceID, tenant, period sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.RecordID,
			&rec.Classification,
			&invoiceID,
			&tenant,
			&period,
			&rec.Due,
			&rec.Paid,
			&rec.Variance,
			&rec.FlagsCSV,
			&rec.TxnsJSON,
		)
		if err != nil {
			return nil, err
		}
		rec.InvoiceID = invoiceID.String
		rec.Tenant = tenant.String
		rec.Period = period.String
		if err := rec.decode(); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", rec.RecordID, err)
		}
		result.Records = append(result.Records, rec)
	}

	return result, rows.Err()
}

// GetStats returns aggregate statistics across runs
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{
		ClassificationCounts: make(map[string]int),
	}

	query := `
	SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed,
		COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed,
		COALESCE(AVG(CASE WHEN status = 'completed' THEN match_rate END), 0) as avg_match_rate,
		COALESCE(MAX(started_at), '') as last_run
	FROM reconciliation_runs
	`

	err := s.db.QueryRow(query).Scan(
		&stats.TotalRuns,
		&stats.CompletedRuns,
		&stats.FailedRuns,
		&stats.AverageMatchRate,
		&stats.LastRunAt,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
	SELECT classification, COUNT(*) FROM reconciliation_records GROUP BY classification
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var classification string
		var count int
		if err := rows.Scan(&classification, &count); err != nil {
			return nil, err
		}
		stats.ClassificationCounts[classification] = count
	}

	return stats, rows.Err()
}

// nullable maps empty strings to NULL so optional columns stay NULL in
// the database instead of collecting empty strings.
func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
