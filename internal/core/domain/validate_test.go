package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmpbPage(style, precinct string, ballotType BallotType, hash string, pageNumber int) HMPBPage {
	return HMPBPage{
		Votes:      map[string][]string{"contest-1": {"option-a"}},
		MarkScores: map[string]float64{"option-a": 0.9},
		Metadata: PageMetadata{
			BallotStyleID: style,
			PrecinctID:    precinct,
			BallotType:    ballotType,
			ElectionHash:  hash,
			PageNumber:    pageNumber,
		},
	}
}

func validHMPBPair() (HMPBPage, HMPBPage) {
	front := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 1)
	back := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 2)
	return front, back
}

func TestValidateSheet_BMDWithBlankBack(t *testing.T) {
	bmd := BMDPage{BallotID: "ballot-1", Votes: map[string][]string{"contest-1": {"option-a"}}}

	assert.Nil(t, ValidateSheet(bmd, BlankPage{}))
	assert.Nil(t, ValidateSheet(bmd, UnreadablePage{Reason: "streaks"}))

	// Orientation never matters: blank-like front, BMD back.
	assert.Nil(t, ValidateSheet(BlankPage{}, bmd))
	assert.Nil(t, ValidateSheet(UnreadablePage{Reason: "streaks"}, bmd))
}

func TestValidateSheet_BMDWithReadableBack(t *testing.T) {
	bmd := BMDPage{BallotID: "ballot-1"}
	front, _ := validHMPBPair()

	err := ValidateSheet(bmd, front)
	require.NotNil(t, err)
	assert.Equal(t, FailureInvalidPageTypes, err.Failure)
	assert.Equal(t, [2]PageType{PageTypeBMD, PageTypeHMPB}, err.Types)

	err = ValidateSheet(bmd, BMDPage{BallotID: "ballot-2"})
	require.NotNil(t, err)
	assert.Equal(t, FailureInvalidPageTypes, err.Failure)
}

func TestValidateSheet_HMPBPair(t *testing.T) {
	front, back := validHMPBPair()
	assert.Nil(t, ValidateSheet(front, back))

	// Page order does not matter for a valid pair.
	assert.Nil(t, ValidateSheet(back, front))
}

func TestValidateSheet_HMPBWithNonHMPB(t *testing.T) {
	front, _ := validHMPBPair()

	err := ValidateSheet(front, BlankPage{})
	require.NotNil(t, err)
	assert.Equal(t, FailureInvalidPageTypes, err.Failure)

	err = ValidateSheet(front, InvalidPrecinctPage{PrecinctID: "precinct-9"})
	require.NotNil(t, err)
	assert.Equal(t, FailureInvalidPageTypes, err.Failure)
}

func TestValidateSheet_NoReadableSides(t *testing.T) {
	assert.Nil(t, ValidateSheet(BlankPage{}, BlankPage{}))
	assert.Nil(t, ValidateSheet(UnreadablePage{Reason: "skew"}, BlankPage{}))
	assert.Nil(t, ValidateSheet(InvalidElectionPage{ElectionHash: "other"}, BlankPage{}))
}

func TestValidateSheet_NonConsecutivePages(t *testing.T) {
	front := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 1)
	back := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 3)

	err := ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureNonConsecutivePages, err.Failure)
	assert.Equal(t, [2]int{1, 3}, err.PageNumbers)
}

func TestValidateSheet_FirstViolatedFieldWins(t *testing.T) {
	// Both the style and the precinct disagree; adjacency also fails.
	// Priority order is adjacency, style, precinct, type, hash.
	front := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 1)
	back := hmpbPage("style-2", "precinct-2", BallotTypeAbsentee, "hash-2", 4)

	err := ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureNonConsecutivePages, err.Failure)

	back.Metadata.PageNumber = 2
	err = ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureMismatchedBallotStyle, err.Failure)
	assert.Equal(t, [2]string{"style-1", "style-2"}, err.Values)

	back.Metadata.BallotStyleID = "style-1"
	err = ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureMismatchedPrecinct, err.Failure)

	back.Metadata.PrecinctID = "precinct-1"
	err = ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureMismatchedBallotType, err.Failure)

	back.Metadata.BallotType = BallotTypePrecinct
	err = ValidateSheet(front, back)
	require.NotNil(t, err)
	assert.Equal(t, FailureMismatchedElectionHash, err.Failure)
	assert.Equal(t, [2]string{"hash-1", "hash-2"}, err.Values)
}

func TestValidateSheet_OrientationIndependence(t *testing.T) {
	// For every pairing, validating [A, B] and [B, A] either both
	// succeed or both fail with swapped recorded values.
	front := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 1)
	back := hmpbPage("style-1", "precinct-2", BallotTypePrecinct, "hash-1", 2)

	errAB := ValidateSheet(front, back)
	errBA := ValidateSheet(back, front)
	require.NotNil(t, errAB)
	require.NotNil(t, errBA)
	assert.Equal(t, errAB.Failure, errBA.Failure)
	assert.Equal(t, errAB.Values[0], errBA.Values[1])
	assert.Equal(t, errAB.Values[1], errBA.Values[0])

	pages := []PageInterpretation{
		BMDPage{BallotID: "b"},
		front,
		BlankPage{},
		UnreadablePage{Reason: "torn"},
		InvalidTestModePage{TestMode: true},
	}
	for _, a := range pages {
		for _, b := range pages {
			ab := ValidateSheet(a, b)
			ba := ValidateSheet(b, a)
			assert.Equal(t, ab == nil, ba == nil,
				"asymmetric result for (%s, %s)", a.Type(), b.Type())
		}
	}
}

func TestCanonicalizeSheet_ReordersHMPBByPageNumber(t *testing.T) {
	p1, p2 := validHMPBPair()
	a := SheetSide{ImagePath: "a.jpg", Interpretation: p2}
	b := SheetSide{ImagePath: "b.jpg", Interpretation: p1}

	front, back, err := CanonicalizeSheet(a, b)
	require.Nil(t, err)
	assert.Equal(t, "b.jpg", front.ImagePath)
	assert.Equal(t, "a.jpg", back.ImagePath)
	assert.Equal(t, 1, front.Interpretation.(HMPBPage).Metadata.PageNumber)
}

func TestCanonicalizeSheet_ReadableSideBecomesFront(t *testing.T) {
	bmd := SheetSide{ImagePath: "bmd.jpg", Interpretation: BMDPage{BallotID: "b"}}
	blank := SheetSide{ImagePath: "blank.jpg", Interpretation: BlankPage{}}

	front, back, err := CanonicalizeSheet(blank, bmd)
	require.Nil(t, err)
	assert.Equal(t, "bmd.jpg", front.ImagePath)
	assert.Equal(t, "blank.jpg", back.ImagePath)
}

func TestCanonicalizeSheet_ValidatesAfterReorder(t *testing.T) {
	// Descending page numbers that are not adjacent: the reorder must
	// not mask the validation failure.
	p1 := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 4)
	p2 := hmpbPage("style-1", "precinct-1", BallotTypePrecinct, "hash-1", 1)

	_, _, err := CanonicalizeSheet(
		SheetSide{Interpretation: p1},
		SheetSide{Interpretation: p2},
	)
	require.NotNil(t, err)
	assert.Equal(t, FailureNonConsecutivePages, err.Failure)
	assert.Equal(t, [2]int{1, 4}, err.PageNumbers)
}
