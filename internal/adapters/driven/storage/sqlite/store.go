// Package sqlite implements the Store port on an embedded SQLite
// database. This is the durable record on the appliance: soft deletes
// keep an audit trail, and the backup freshness comparison is computed
// from timestamps on every call rather than cached.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/batchscan/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is the SQLite-backed implementation of driven.Store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.batchscan/data/ballots.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".batchscan", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ballots.db")

	// WAL mode so status reads never block the scan loop's writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// SetElection replaces the election configuration and wipes all prior
// batches and sheets.
func (s *Store) SetElection(ctx context.Context, election *domain.Election) error {
	definitionJSON, err := json.Marshal(election.Definition)
	if err != nil {
		return fmt.Errorf("marshalling election definition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM sheets",
		"DELETE FROM batches",
		"DELETE FROM election",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing prior data: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO election (id, definition, jurisdiction, election_hash, test_mode, batch_seq, created_at)
		VALUES (1, ?, ?, ?, ?, 0, ?)
	`, string(definitionJSON), election.Jurisdiction, election.ElectionHash,
		election.TestMode, election.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving election: %w", err)
	}

	return tx.Commit()
}

// GetElection returns the active election configuration.
func (s *Store) GetElection(ctx context.Context) (*domain.Election, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT definition, jurisdiction, election_hash, test_mode, created_at
		FROM election WHERE id = 1
	`)

	var election domain.Election
	var definitionJSON string
	if err := row.Scan(&definitionJSON, &election.Jurisdiction,
		&election.ElectionHash, &election.TestMode, &election.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning election: %w", err)
	}
	if err := json.Unmarshal([]byte(definitionJSON), &election.Definition); err != nil {
		return nil, fmt.Errorf("unmarshalling election definition: %w", err)
	}
	return &election, nil
}

// AddBatch opens a new batch with the next "Batch N" label. The label
// sequence lives on the election row so soft-deleted batches never
// free their number.
func (s *Store) AddBatch(ctx context.Context, id string) (*domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "UPDATE election SET batch_seq = batch_seq + 1 WHERE id = 1")
	if err != nil {
		return nil, fmt.Errorf("advancing batch sequence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("advancing batch sequence: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrNoElection
	}

	var seq int
	if err := tx.QueryRowContext(ctx, "SELECT batch_seq FROM election WHERE id = 1").Scan(&seq); err != nil {
		return nil, fmt.Errorf("reading batch sequence: %w", err)
	}

	batch := &domain.Batch{
		ID:        id,
		Label:     fmt.Sprintf("Batch %d", seq),
		StartedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, label, started_at) VALUES (?, ?, ?)
	`, batch.ID, batch.Label, batch.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("saving batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return batch, nil
}

// FinishBatch closes a batch.
func (s *Store) FinishBatch(ctx context.Context, id, errorMessage string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE batches SET ended_at = ?, error = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), errorMessage, id)
	if err != nil {
		return fmt.Errorf("finishing batch: %w", err)
	}
	return requireAffected(result)
}

// PurgeOpenBatches hard-deletes batches left open by a prior process.
// Their sheets cascade.
func (s *Store) PurgeOpenBatches(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM batches WHERE ended_at IS NULL AND deleted_at IS NULL
	`)
	if err != nil {
		return fmt.Errorf("purging open batches: %w", err)
	}
	return nil
}

// AddSheet stores a sheet, computing its adjudication flag once at
// insert time.
func (s *Store) AddSheet(ctx context.Context, id, batchID string, front, back domain.SheetSide, auditID string) (*domain.Sheet, error) {
	frontJSON, err := domain.MarshalPage(front.Interpretation)
	if err != nil {
		return nil, fmt.Errorf("marshalling front interpretation: %w", err)
	}
	backJSON, err := domain.MarshalPage(back.Interpretation)
	if err != nil {
		return nil, fmt.Errorf("marshalling back interpretation: %w", err)
	}

	var live int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM batches WHERE id = ? AND deleted_at IS NULL", batchID).Scan(&live)
	if err != nil {
		return nil, fmt.Errorf("checking batch: %w", err)
	}
	if live == 0 {
		return nil, domain.ErrNotFound
	}

	now := time.Now().UTC()
	sheet := &domain.Sheet{
		ID:        id,
		BatchID:   batchID,
		AuditID:   auditID,
		Front:     front,
		Back:      back,
		CreatedAt: now,
	}
	sheet.RequiresAdjudication = domain.SheetRequiresAdjudication(front.Interpretation, back.Interpretation)

	var finishedAt any
	if !sheet.RequiresAdjudication {
		finished := now
		sheet.AdjudicationFinishedAt = &finished
		finishedAt = finished
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheets (
			id, batch_id, audit_id,
			front_image_path, back_image_path,
			front_interpretation, back_interpretation,
			requires_adjudication, adjudication_finished_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sheet.ID, sheet.BatchID, sheet.AuditID,
		front.ImagePath, back.ImagePath,
		string(frontJSON), string(backJSON),
		sheet.RequiresAdjudication, finishedAt, sheet.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving sheet: %w", err)
	}
	return sheet, nil
}

// DeleteSheet soft-deletes a sheet.
func (s *Store) DeleteSheet(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deleting sheet: %w", err)
	}
	return requireAffected(result)
}

// DeleteBatch soft-deletes a batch and its live sheets.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE batches SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("deleting batch: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sheets SET deleted_at = ? WHERE batch_id = ? AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("deleting batch sheets: %w", err)
	}
	return tx.Commit()
}

// GetBatches returns all live batches with derived sheet counts,
// oldest first.
func (s *Store) GetBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.label, b.started_at, b.ended_at, b.error, b.deleted_at,
			(SELECT COUNT(*) FROM sheets s WHERE s.batch_id = b.id AND s.deleted_at IS NULL)
		FROM batches b
		WHERE b.deleted_at IS NULL
		ORDER BY b.started_at ASC, b.rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		var batch domain.Batch
		var endedAt, deletedAt sql.NullTime
		if err := rows.Scan(&batch.ID, &batch.Label, &batch.StartedAt,
			&endedAt, &batch.Error, &deletedAt, &batch.SheetCount); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			batch.EndedAt = &t
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			batch.DeletedAt = &t
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

const sheetColumns = `
	id, batch_id, audit_id,
	front_image_path, back_image_path,
	front_interpretation, back_interpretation,
	requires_adjudication, adjudication_finished_at, created_at, deleted_at
`

// GetNextAdjudicationSheet returns the oldest live sheet awaiting
// review.
func (s *Store) GetNextAdjudicationSheet(ctx context.Context) (*domain.Sheet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sheetColumns+`
		FROM sheets
		WHERE deleted_at IS NULL
			AND requires_adjudication = 1
			AND adjudication_finished_at IS NULL
		ORDER BY created_at ASC, rowid ASC
		LIMIT 1
	`)
	return scanSheet(row)
}

// AdjudicateSheet marks a pending sheet as reviewed and accepted.
func (s *Store) AdjudicateSheet(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET adjudication_finished_at = ?
		WHERE id = ? AND deleted_at IS NULL AND adjudication_finished_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("adjudicating sheet: %w", err)
	}
	return requireAffected(result)
}

// AdjudicationStatus summarises pending and resolved review counts
// across live sheets.
func (s *Store) AdjudicationStatus(ctx context.Context) (*domain.AdjudicationStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN adjudication_finished_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN adjudication_finished_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM sheets
		WHERE deleted_at IS NULL AND requires_adjudication = 1
	`)

	var status domain.AdjudicationStatus
	if err := row.Scan(&status.Remaining, &status.Adjudicated); err != nil {
		return nil, fmt.Errorf("scanning adjudication status: %w", err)
	}
	return &status, nil
}

// BallotsCounted returns the number of accepted sheets.
func (s *Store) BallotsCounted(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sheets
		WHERE deleted_at IS NULL
			AND (requires_adjudication = 0 OR adjudication_finished_at IS NOT NULL)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting ballots: %w", err)
	}
	return count, nil
}

// GetCanUnconfigure reports whether destructive operations are
// permitted: always for test-mode elections, whenever no ballots are
// counted, and otherwise only when the recorded backup is at least as
// recent as the newest data mutation.
func (s *Store) GetCanUnconfigure(ctx context.Context) (bool, error) {
	var testMode bool
	var backupAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT test_mode, backup_at FROM election WHERE id = 1").Scan(&testMode, &backupAt)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("scanning election: %w", err)
	}
	if testMode {
		return true, nil
	}
	counted, err := s.BallotsCounted(ctx)
	if err != nil {
		return false, err
	}
	if counted == 0 {
		return true, nil
	}

	// The newest mutation: any sheet insert or soft delete, or the
	// soft delete of a batch that held sheets.
	var latest sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(t) FROM (
			SELECT MAX(created_at) AS t FROM sheets
			UNION ALL
			SELECT MAX(deleted_at) FROM sheets
			UNION ALL
			SELECT MAX(b.deleted_at) FROM batches b
			WHERE EXISTS (SELECT 1 FROM sheets s WHERE s.batch_id = b.id)
		)
	`).Scan(&latest)
	if err != nil {
		return false, fmt.Errorf("scanning latest mutation: %w", err)
	}

	if !latest.Valid {
		return true, nil
	}
	return backupAt.Valid && !backupAt.Time.Before(latest.Time), nil
}

// RecordBackup records when a backup of the store completed.
func (s *Store) RecordBackup(ctx context.Context, completedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE election SET backup_at = ? WHERE id = 1", completedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording backup: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording backup: %w", err)
	}
	if affected == 0 {
		return domain.ErrNoElection
	}
	return nil
}

// ResetElectionSession purges all batches and sheets and resets the
// batch label sequence, keeping the election configuration.
func (s *Store) ResetElectionSession(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM sheets",
		"DELETE FROM batches",
		"UPDATE election SET batch_seq = 0 WHERE id = 1",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting election session: %w", err)
		}
	}
	return tx.Commit()
}

// Reset additionally drops the election configuration.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM sheets",
		"DELETE FROM batches",
		"DELETE FROM election",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
	}
	return tx.Commit()
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSheet reads one sheet row, decoding both page interpretations.
func scanSheet(row rowScanner) (*domain.Sheet, error) {
	var sheet domain.Sheet
	var frontJSON, backJSON string
	var finishedAt, deletedAt sql.NullTime
	err := row.Scan(&sheet.ID, &sheet.BatchID, &sheet.AuditID,
		&sheet.Front.ImagePath, &sheet.Back.ImagePath,
		&frontJSON, &backJSON,
		&sheet.RequiresAdjudication, &finishedAt, &sheet.CreatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sheet: %w", err)
	}

	if sheet.Front.Interpretation, err = domain.UnmarshalPage([]byte(frontJSON)); err != nil {
		return nil, fmt.Errorf("unmarshalling front interpretation: %w", err)
	}
	if sheet.Back.Interpretation, err = domain.UnmarshalPage([]byte(backJSON)); err != nil {
		return nil, fmt.Errorf("unmarshalling back interpretation: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		sheet.AdjudicationFinishedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		sheet.DeletedAt = &t
	}
	return &sheet, nil
}

// requireAffected maps "no rows changed" onto domain.ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
