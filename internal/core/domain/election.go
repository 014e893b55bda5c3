package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// PaperSize identifies the ballot paper size a scanning session is
// configured for.
type PaperSize string

const (
	// PaperSizeLetter is 8.5in x 11in ballot paper.
	PaperSizeLetter PaperSize = "letter"
	// PaperSizeLegal is 8.5in x 14in ballot paper.
	PaperSizeLegal PaperSize = "legal"
	// PaperSizeCustom17 is 8.5in x 17in ballot paper.
	PaperSizeCustom17 PaperSize = "custom-8.5x17"
)

const mmPerInch = 25.4

// Dimensions returns the paper width and height in millimetres, the unit
// scanner drivers are configured in. Unknown sizes fall back to letter.
func (p PaperSize) Dimensions() (widthMM, heightMM float64) {
	switch p {
	case PaperSizeLegal:
		return 8.5 * mmPerInch, 14 * mmPerInch
	case PaperSizeCustom17:
		return 8.5 * mmPerInch, 17 * mmPerInch
	default:
		return 8.5 * mmPerInch, 11 * mmPerInch
	}
}

// BallotType distinguishes how a ballot was cast.
type BallotType string

const (
	// BallotTypePrecinct is a standard in-person ballot.
	BallotTypePrecinct BallotType = "precinct"
	// BallotTypeAbsentee is a mailed-in ballot.
	BallotTypeAbsentee BallotType = "absentee"
	// BallotTypeProvisional is a ballot pending voter verification.
	BallotTypeProvisional BallotType = "provisional"
)

// Precinct is a voting district within the election.
type Precinct struct {
	// ID is the unique identifier for the precinct.
	ID string `json:"id"`

	// Name is the human-readable precinct name.
	Name string `json:"name"`
}

// BallotStyle groups the contests printed on one ballot layout.
type BallotStyle struct {
	// ID is the unique identifier for the ballot style.
	ID string `json:"id"`

	// PrecinctIDs lists the precincts this style is used in.
	PrecinctIDs []string `json:"precinctIds"`
}

// Contest is a single race or question on the ballot.
type Contest struct {
	// ID is the unique identifier for the contest.
	ID string `json:"id"`

	// Title is the human-readable contest title.
	Title string `json:"title"`

	// OptionIDs lists the selectable options, write-ins excluded.
	OptionIDs []string `json:"optionIds"`

	// Seats is how many options may be selected.
	Seats int `json:"seats"`
}

// ElectionDefinition is the immutable definition of an election:
// ballot styles, precincts, contests and paper size. It is treated as
// opaque content by the scanning core; only the content hash and the
// paper size are consulted.
type ElectionDefinition struct {
	Title        string        `json:"title"`
	Date         string        `json:"date"`
	Precincts    []Precinct    `json:"precincts"`
	BallotStyles []BallotStyle `json:"ballotStyles"`
	Contests     []Contest     `json:"contests"`
	PaperSize    PaperSize     `json:"paperSize"`
}

// ContentHash returns the hex SHA-256 of the canonical JSON encoding of
// the definition. Two workstations configured from the same definition
// always derive the same hash.
func (d ElectionDefinition) ContentHash() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Marshalling a plain struct cannot fail; keep the signature simple.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Election is the active election configuration. Exactly one may be
// active at a time; setting a new one wipes prior batches and sheets.
type Election struct {
	// Definition is the immutable election content.
	Definition ElectionDefinition

	// Jurisdiction identifies the administering jurisdiction.
	Jurisdiction string

	// ElectionHash is the content hash of Definition.
	ElectionHash string

	// TestMode marks the election as a pre-election test. Test-mode
	// data is never subject to the backup invariant.
	TestMode bool

	// CreatedAt is when the configuration was applied.
	CreatedAt time.Time
}
