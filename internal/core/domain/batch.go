package domain

import "time"

// Batch is an ordered group of sheets scanned in one continuous
// operator session. At most one batch may be open (no end timestamp)
// at a time.
type Batch struct {
	// ID is the unique identifier for the batch.
	ID string

	// Label is the operator-visible name, "Batch N", where N
	// increments per election session.
	Label string

	// StartedAt is when the batch was opened.
	StartedAt time.Time

	// EndedAt is when the batch was closed. Nil while open.
	EndedAt *time.Time

	// Error is the terminal error recorded when the scanner session
	// failed. Empty for batches that closed normally.
	Error string

	// DeletedAt is when the batch was soft-deleted. Nil while live.
	DeletedAt *time.Time

	// SheetCount is the number of live sheets in the batch.
	SheetCount int
}

// Open reports whether the batch is still accepting sheets.
func (b *Batch) Open() bool {
	return b.EndedAt == nil && b.DeletedAt == nil
}

// AdjudicationStatus summarises human-review bookkeeping across all
// live sheets.
type AdjudicationStatus struct {
	// Remaining is how many sheets still await review.
	Remaining int

	// Adjudicated is how many flagged sheets have been resolved.
	Adjudicated int
}
