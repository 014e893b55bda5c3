// Package domain defines the core business entities for batchscan.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Election: The active election configuration with its content hash
//   - Batch: A group of sheets scanned in one operator session
//   - Sheet: One physical ballot sheet, front and back
//   - PageInterpretation: The tagged variant produced for each scanned side
//
// It also holds the two pure decision functions of the scanning core:
// ValidateSheet (structural sheet validation) and
// SheetRequiresAdjudication (the accept/review rule).
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
