package domain

import "time"

// SheetSide is one side of a scanned sheet: the stored image path and
// its interpretation.
type SheetSide struct {
	// ImagePath is the normalised image file for this side.
	ImagePath string

	// Interpretation is the decoded page content.
	Interpretation PageInterpretation
}

// Sheet is one physical piece of paper scanned as a front/back pair.
type Sheet struct {
	// ID is the unique identifier for the sheet.
	ID string

	// BatchID links to the owning Batch.
	BatchID string

	// AuditID is the operator-visible id imprinted on the sheet by the
	// scanner's endorser, when one is attached. Empty otherwise.
	AuditID string

	// Front and Back are the two sides in canonical order: the lower
	// hand-marked page number, or the readable side, is the front.
	Front SheetSide
	Back  SheetSide

	// RequiresAdjudication is computed once at insert time from the
	// adjudication rule and never recomputed.
	RequiresAdjudication bool

	// AdjudicationFinishedAt is when review was resolved. Set at insert
	// time for sheets that never required review; nil while pending.
	AdjudicationFinishedAt *time.Time

	// CreatedAt is when the sheet was stored.
	CreatedAt time.Time

	// DeletedAt is when the sheet was rejected. Nil while live.
	DeletedAt *time.Time
}

// Accepted reports whether the sheet counts toward tabulation: not
// deleted and not pending adjudication.
func (s *Sheet) Accepted() bool {
	if s.DeletedAt != nil {
		return false
	}
	return !s.RequiresAdjudication || s.AdjudicationFinishedAt != nil
}
