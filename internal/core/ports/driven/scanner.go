package driven

import (
	"context"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

// ScanMode selects the capture mode for a scanning session.
type ScanMode string

const (
	// ScanModeGray captures 8-bit grayscale images.
	ScanModeGray ScanMode = "gray"
	// ScanModeColor captures full-colour images.
	ScanModeColor ScanMode = "color"
	// ScanModeLineart captures 1-bit line-art images.
	ScanModeLineart ScanMode = "lineart"
)

// ScanOptions configures one scanning session.
type ScanOptions struct {
	// PaperSize sizes the device's scan area.
	PaperSize domain.PaperSize

	// Mode is the capture mode. Defaults to grayscale.
	Mode ScanMode

	// ImprintIDPrefix, when non-empty, asks the device to physically
	// print a sequential audit id with this prefix on each sheet.
	// Ignored by devices without an imprinter.
	ImprintIDPrefix string
}

// SheetImages is one scanned sheet: a front/back image pair plus the
// audit id imprinted on the sheet, when the device supports imprinting.
type SheetImages struct {
	FrontPath string
	BackPath  string
	AuditID   string
}

// ScanSession is one active scanning run. Sessions are driven by a
// single consumer; ScanSheet is not safe for concurrent callers.
type ScanSession interface {
	// ScanSheet returns the next image pair. A nil pair with a nil
	// error means the batch ended: the device reported completion or
	// EndBatch was called. A non-nil error means the session failed
	// and no further sheets will be produced.
	ScanSheet(ctx context.Context) (*SheetImages, error)

	// EndBatch signals the device to stop scanning. Safe to call more
	// than once; only the first call has effect. It does not interrupt
	// an in-flight ScanSheet.
	EndBatch()

	// AcceptSheet tells devices that mark sheets that the last sheet
	// was accepted. A no-op on devices without that capability.
	AcceptSheet()

	// RejectSheet tells marking devices the last sheet was rejected.
	RejectSheet()

	// ReviewSheet tells marking devices the last sheet is held for
	// review.
	ReviewSheet()
}

// BatchScanner produces scanning sessions. Implementations: the
// hardware subprocess driver, the finite loop simulator and the
// scriptable in-memory mock.
type BatchScanner interface {
	// ScanSheets starts one scanning session configured by opts.
	ScanSheets(ctx context.Context, opts ScanOptions) (ScanSession, error)
}
