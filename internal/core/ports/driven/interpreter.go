package driven

import (
	"context"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

// PageResult is the interpreter's output for one side of a sheet.
type PageResult struct {
	// Interpretation is the decoded page content.
	Interpretation domain.PageInterpretation

	// OriginalImagePath is the image as scanned.
	OriginalImagePath string

	// NormalizedImagePath is the deskewed, cropped image the
	// interpretation was read from.
	NormalizedImagePath string
}

// InterpretedSheet is the interpreter's output for one sheet.
type InterpretedSheet struct {
	Front PageResult
	Back  PageResult
}

// SheetInterpreter decodes a scanned image pair into typed page
// interpretations. The core treats the implementation as an external
// collaborator and only relies on the tagged-variant shape of the
// results.
type SheetInterpreter interface {
	// Interpret decodes both sides of a sheet against the configured
	// election. reviewReasons selects which hand-marked conditions the
	// interpreter should flag for adjudication.
	Interpret(
		ctx context.Context,
		election *domain.Election,
		reviewReasons []domain.AdjudicationReason,
		frontPath, backPath string,
	) (*InterpretedSheet, error)
}
