package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is an in-memory implementation of driven.Store. It mirrors
// the SQLite adapter's semantics, including soft deletes and the
// backup freshness comparison.
type Store struct {
	mu       sync.RWMutex
	election *domain.Election
	backupAt *time.Time
	batchSeq int
	batches  []*domain.Batch
	sheets   []*domain.Sheet
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{}
}

// SetElection replaces the election configuration and wipes all prior
// batches and sheets.
func (s *Store) SetElection(_ context.Context, election *domain.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *election
	s.election = &e
	s.backupAt = nil
	s.batchSeq = 0
	s.batches = nil
	s.sheets = nil
	return nil
}

// GetElection returns the active election configuration.
func (s *Store) GetElection(_ context.Context) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.election == nil {
		return nil, domain.ErrNotFound
	}
	e := *s.election
	return &e, nil
}

// AddBatch opens a new batch with the next "Batch N" label.
func (s *Store) AddBatch(_ context.Context, id string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.election == nil {
		return nil, domain.ErrNoElection
	}

	s.batchSeq++
	batch := &domain.Batch{
		ID:        id,
		Label:     fmt.Sprintf("Batch %d", s.batchSeq),
		StartedAt: time.Now().UTC(),
	}
	s.batches = append(s.batches, batch)

	b := *batch
	return &b, nil
}

// FinishBatch closes a batch.
func (s *Store) FinishBatch(_ context.Context, id, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.findBatch(id)
	if batch == nil {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	batch.EndedAt = &now
	batch.Error = errorMessage
	return nil
}

// PurgeOpenBatches hard-deletes batches left open by a prior process,
// cascading to their sheets.
func (s *Store) PurgeOpenBatches(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := make(map[string]bool)
	kept := s.batches[:0]
	for _, b := range s.batches {
		if b.Open() {
			open[b.ID] = true
			continue
		}
		kept = append(kept, b)
	}
	s.batches = kept

	keptSheets := s.sheets[:0]
	for _, sh := range s.sheets {
		if !open[sh.BatchID] {
			keptSheets = append(keptSheets, sh)
		}
	}
	s.sheets = keptSheets
	return nil
}

// AddSheet stores a sheet, computing its adjudication flag once.
func (s *Store) AddSheet(_ context.Context, id, batchID string, front, back domain.SheetSide, auditID string) (*domain.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findBatch(batchID) == nil {
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
	if !sheet.RequiresAdjudication {
		finished := now
		sheet.AdjudicationFinishedAt = &finished
	}
	s.sheets = append(s.sheets, sheet)

	sh := *sheet
	return &sh, nil
}

// DeleteSheet soft-deletes a sheet.
func (s *Store) DeleteSheet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sh := range s.sheets {
		if sh.ID == id && sh.DeletedAt == nil {
			now := time.Now().UTC()
			sh.DeletedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// DeleteBatch soft-deletes a batch and its live sheets.
func (s *Store) DeleteBatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.findBatchIncludingDeleted(id)
	if batch == nil || batch.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	batch.DeletedAt = &now
	for _, sh := range s.sheets {
		if sh.BatchID == id && sh.DeletedAt == nil {
			sh.DeletedAt = &now
		}
	}
	return nil
}

// GetBatches returns all live batches with derived sheet counts,
// oldest first.
func (s *Store) GetBatches(_ context.Context) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, sh := range s.sheets {
		if sh.DeletedAt == nil {
			counts[sh.BatchID]++
		}
	}

	var batches []domain.Batch
	for _, b := range s.batches {
		if b.DeletedAt != nil {
			continue
		}
		batch := *b
		batch.SheetCount = counts[b.ID]
		batches = append(batches, batch)
	}
	return batches, nil
}

// GetNextAdjudicationSheet returns the oldest live sheet awaiting
// review.
func (s *Store) GetNextAdjudicationSheet(_ context.Context) (*domain.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sh := range s.sheets {
		if sh.DeletedAt == nil && sh.RequiresAdjudication && sh.AdjudicationFinishedAt == nil {
			sheet := *sh
			return &sheet, nil
		}
	}
	return nil, domain.ErrNotFound
}

// AdjudicateSheet marks a pending sheet as reviewed and accepted.
func (s *Store) AdjudicateSheet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sh := range s.sheets {
		if sh.ID == id && sh.DeletedAt == nil && sh.AdjudicationFinishedAt == nil {
			now := time.Now().UTC()
			sh.AdjudicationFinishedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// AdjudicationStatus summarises pending and resolved review counts.
func (s *Store) AdjudicationStatus(_ context.Context) (*domain.AdjudicationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &domain.AdjudicationStatus{}
	for _, sh := range s.sheets {
		if sh.DeletedAt != nil || !sh.RequiresAdjudication {
			continue
		}
		if sh.AdjudicationFinishedAt == nil {
			status.Remaining++
		} else {
			status.Adjudicated++
		}
	}
	return status, nil
}

// BallotsCounted returns the number of accepted sheets.
func (s *Store) BallotsCounted(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countedLocked(), nil
}

func (s *Store) countedLocked() int {
	count := 0
	for _, sh := range s.sheets {
		if sh.Accepted() {
			count++
		}
	}
	return count
}

// GetCanUnconfigure reports whether destructive operations are
// permitted, comparing the recorded backup time against the newest
// data mutation. Always true while no ballots are counted.
func (s *Store) GetCanUnconfigure(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.election == nil || s.election.TestMode {
		return true, nil
	}
	if s.countedLocked() == 0 {
		return true, nil
	}

	latest := s.latestMutation()
	if latest.IsZero() {
		return true, nil
	}
	return s.backupAt != nil && !s.backupAt.Before(latest), nil
}

// latestMutation returns the newest timestamp at which scan data
// changed. Zero when no scan data exists.
func (s *Store) latestMutation() time.Time {
	var latest time.Time
	hadSheets := make(map[string]bool)
	for _, sh := range s.sheets {
		if sh.CreatedAt.After(latest) {
			latest = sh.CreatedAt
		}
		if sh.DeletedAt != nil && sh.DeletedAt.After(latest) {
			latest = *sh.DeletedAt
		}
		hadSheets[sh.BatchID] = true
	}
	for _, b := range s.batches {
		if b.DeletedAt != nil && hadSheets[b.ID] && b.DeletedAt.After(latest) {
			latest = *b.DeletedAt
		}
	}
	return latest
}

// RecordBackup records when a backup of the store completed.
func (s *Store) RecordBackup(_ context.Context, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.election == nil {
		return domain.ErrNoElection
	}
	at := completedAt.UTC()
	s.backupAt = &at
	return nil
}

// ResetElectionSession purges all batches and sheets and resets the
// batch label sequence.
func (s *Store) ResetElectionSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchSeq = 0
	s.batches = nil
	s.sheets = nil
	return nil
}

// Reset additionally drops the election configuration.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.election = nil
	s.backupAt = nil
	s.batchSeq = 0
	s.batches = nil
	s.sheets = nil
	return nil
}

func (s *Store) findBatch(id string) *domain.Batch {
	b := s.findBatchIncludingDeleted(id)
	if b == nil || b.DeletedAt != nil {
		return nil
	}
	return b
}

func (s *Store) findBatchIncludingDeleted(id string) *domain.Batch {
	for _, b := range s.batches {
		if b.ID == id {
			return b
		}
	}
	return nil
}
