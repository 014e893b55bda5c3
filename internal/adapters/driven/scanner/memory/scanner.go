// Package memory provides a scriptable in-memory batch scanner used as
// a test double. Tests enqueue sessions whose sheet-by-sheet outcomes
// are declared up front with a small builder.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
)

// Ensure interface compliance.
var (
	_ driven.BatchScanner = (*Scanner)(nil)
	_ driven.ScanSession  = (*Session)(nil)
)

// ErrNoSession is returned by ScanSheets when no scripted session has
// been queued.
var ErrNoSession = errors.New("no scripted session available")

// Scanner hands out pre-scripted sessions in FIFO order.
type Scanner struct {
	mu       sync.Mutex
	sessions []*Session

	// LastOptions records the options of the most recent ScanSheets
	// call for assertions.
	LastOptions driven.ScanOptions
}

// NewScanner creates an empty scriptable scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// AddSession queues a session for a future ScanSheets call.
func (s *Scanner) AddSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
}

// ScanSheets dequeues the next scripted session.
func (s *Scanner) ScanSheets(_ context.Context, opts driven.ScanOptions) (driven.ScanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastOptions = opts
	if len(s.sessions) == 0 {
		return nil, ErrNoSession
	}
	session := s.sessions[0]
	s.sessions = s.sessions[1:]
	return session, nil
}

// step is one scripted ScanSheet outcome.
type step struct {
	images *driven.SheetImages
	err    error
}

// Session replays a scripted sequence of sheets and counts the
// disposition calls it receives.
type Session struct {
	mu    sync.Mutex
	steps []step
	ended bool
	next  int

	// Counters for assertions.
	Accepted      int
	Rejected      int
	Reviewed      int
	EndBatchCalls int
}

// NewSession creates an empty scripted session. Finish the script with
// End before handing it to a Scanner.
func NewSession() *Session {
	return &Session{}
}

// Sheet appends a successful scan of one sheet.
func (s *Session) Sheet(front, back, auditID string) *Session {
	s.addStep(step{images: &driven.SheetImages{FrontPath: front, BackPath: back, AuditID: auditID}})
	return s
}

// Error appends a failing scan.
func (s *Session) Error(err error) *Session {
	s.addStep(step{err: err})
	return s
}

// End marks the normal end of the batch. No further steps may be
// added.
func (s *Session) End() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return s
}

func (s *Session) addStep(st step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		panic("memory: step added after End")
	}
	s.steps = append(s.steps, st)
}

// ScanSheet replays the next scripted step. After the script runs out
// it reports the end of the batch.
func (s *Session) ScanSheet(_ context.Context) (*driven.SheetImages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.steps) {
		return nil, nil
	}
	st := s.steps[s.next]
	s.next++
	if st.err != nil {
		return nil, st.err
	}
	return st.images, nil
}

// EndBatch records an early termination request.
func (s *Session) EndBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndBatchCalls++
	s.next = len(s.steps)
}

// AcceptSheet records a drop into the accepted tray.
func (s *Session) AcceptSheet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Accepted++
}

// RejectSheet records a return of the sheet to the operator.
func (s *Session) RejectSheet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rejected++
}

// ReviewSheet records a hold for adjudication.
func (s *Session) ReviewSheet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reviewed++
}
