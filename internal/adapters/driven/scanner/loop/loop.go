// Package loop provides a scanner simulator that replays a fixed
// ordered list of batches of sheet image pairs, cycling back to the
// first batch after the last. It is the development stand-in for real
// hardware: sessions never fail, options are ignored and no imprinter
// is present.
package loop

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/logger"
)

// Ensure interface compliance.
var (
	_ driven.BatchScanner = (*Scanner)(nil)
	_ driven.ScanSession  = (*Session)(nil)
)

// defaultSheetsPerSecond approximates a mid-range duplex scanner.
const defaultSheetsPerSecond = 2

// SheetPair is one simulated sheet: the front and back image files to
// replay.
type SheetPair struct {
	FrontPath string
	BackPath  string
}

// Batch is the ordered sheets of one simulated scanning session.
type Batch []SheetPair

// Scanner replays its batches in order, wrapping around forever.
type Scanner struct {
	mu      sync.Mutex
	batches []Batch
	next    int
	limiter *rate.Limiter
}

// NewScanner creates a simulator over the given batches, delivering
// sheets at sheetsPerSecond. Zero or negative means the default pace.
func NewScanner(batches []Batch, sheetsPerSecond float64) *Scanner {
	if sheetsPerSecond <= 0 {
		sheetsPerSecond = defaultSheetsPerSecond
	}
	return &Scanner{
		batches: batches,
		limiter: rate.NewLimiter(rate.Limit(sheetsPerSecond), 1),
	}
}

// ScanSheets starts a session replaying the next batch in the cycle.
// Per-session options are ignored.
func (s *Scanner) ScanSheets(_ context.Context, _ driven.ScanOptions) (driven.ScanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairs Batch
	if len(s.batches) > 0 {
		pairs = s.batches[s.next]
		s.next = (s.next + 1) % len(s.batches)
	}
	logger.Debug("Simulated session with %d sheets", len(pairs))
	return &Session{pairs: pairs, limiter: s.limiter}, nil
}

// Session replays one simulated batch.
type Session struct {
	mu      sync.Mutex
	pairs   Batch
	pos     int
	ended   bool
	limiter *rate.Limiter
}

// ScanSheet delivers the next simulated sheet at the configured pace.
// No imprinter is attached, so the audit id is always empty.
func (s *Session) ScanSheet(ctx context.Context) (*driven.SheetImages, error) {
	s.mu.Lock()
	if s.ended || s.pos >= len(s.pairs) {
		s.mu.Unlock()
		return nil, nil
	}
	pair := s.pairs[s.pos]
	s.pos++
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return &driven.SheetImages{FrontPath: pair.FrontPath, BackPath: pair.BackPath}, nil
}

// EndBatch stops the replay early.
func (s *Session) EndBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// AcceptSheet is a no-op: the simulator has no trays.
func (s *Session) AcceptSheet() {}

// RejectSheet is a no-op.
func (s *Session) RejectSheet() {}

// ReviewSheet is a no-op.
func (s *Session) ReviewSheet() {}
