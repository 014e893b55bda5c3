package domain

import "fmt"

// ValidationFailure names the single structural check a sheet failed.
type ValidationFailure string

const (
	// FailureInvalidPageTypes is an invalid front/back type pairing.
	FailureInvalidPageTypes ValidationFailure = "invalid-page-types"
	// FailureNonConsecutivePages is a hand-marked pair whose page
	// numbers do not differ by exactly one.
	FailureNonConsecutivePages ValidationFailure = "non-consecutive-page-numbers"
	// FailureMismatchedBallotStyle is a ballot style disagreement.
	FailureMismatchedBallotStyle ValidationFailure = "mismatched-ballot-style"
	// FailureMismatchedPrecinct is a precinct disagreement.
	FailureMismatchedPrecinct ValidationFailure = "mismatched-precinct"
	// FailureMismatchedBallotType is a ballot type disagreement.
	FailureMismatchedBallotType ValidationFailure = "mismatched-ballot-type"
	// FailureMismatchedElectionHash is an election hash disagreement.
	FailureMismatchedElectionHash ValidationFailure = "mismatched-election-hash"
)

// SheetValidationError identifies exactly one structural failure on a
// sheet. The recorded values are in the order the sides were given, so
// validating a swapped pair yields an error with swapped values.
type SheetValidationError struct {
	Failure ValidationFailure

	// Types records both side types for FailureInvalidPageTypes.
	Types [2]PageType

	// PageNumbers records both page numbers for
	// FailureNonConsecutivePages.
	PageNumbers [2]int

	// Values records the two disagreeing field values for the
	// metadata mismatch failures.
	Values [2]string
}

// Error returns a human-readable description, suitable for storing on
// an unreadable-page marker.
func (e *SheetValidationError) Error() string {
	switch e.Failure {
	case FailureInvalidPageTypes:
		return fmt.Sprintf("invalid front/back page types: (%s, %s)", e.Types[0], e.Types[1])
	case FailureNonConsecutivePages:
		return fmt.Sprintf("non-consecutive page numbers: (%d, %d)", e.PageNumbers[0], e.PageNumbers[1])
	case FailureMismatchedBallotStyle:
		return fmt.Sprintf("mismatched ballot style: (%s, %s)", e.Values[0], e.Values[1])
	case FailureMismatchedPrecinct:
		return fmt.Sprintf("mismatched precinct: (%s, %s)", e.Values[0], e.Values[1])
	case FailureMismatchedBallotType:
		return fmt.Sprintf("mismatched ballot type: (%s, %s)", e.Values[0], e.Values[1])
	case FailureMismatchedElectionHash:
		return fmt.Sprintf("mismatched election hash: (%s, %s)", e.Values[0], e.Values[1])
	default:
		return fmt.Sprintf("sheet validation failed: %s", e.Failure)
	}
}

// pageIsBlankLike reports whether a page is structurally contentless:
// blank or unreadable. Used for the orientation swap rule.
func pageIsBlankLike(p PageInterpretation) bool {
	switch p.Type() {
	case PageTypeBlank, PageTypeUnreadable:
		return true
	default:
		return false
	}
}

// pageIsReadable reports whether a page carries decoded ballot content.
func pageIsReadable(p PageInterpretation) bool {
	switch p.Type() {
	case PageTypeBMD, PageTypeHMPB:
		return true
	default:
		return false
	}
}

// ValidateSheet decides whether two page interpretations jointly form a
// structurally valid ballot sheet. The given order is not presumed
// canonical: if exactly one side is blank-like, the check is re-run
// with the sides swapped before a front/back type error is reported, so
// orientation never matters. A nil return means the sheet is valid.
func ValidateSheet(front, back PageInterpretation) *SheetValidationError {
	err := checkOrderedPair(front, back)
	if err == nil {
		return nil
	}
	if err.Failure == FailureInvalidPageTypes && pageIsBlankLike(front) != pageIsBlankLike(back) {
		if swapped := checkOrderedPair(back, front); swapped == nil {
			return nil
		}
	}
	return err
}

// checkOrderedPair validates a pair assuming front really is the front.
func checkOrderedPair(front, back PageInterpretation) *SheetValidationError {
	typeErr := &SheetValidationError{
		Failure: FailureInvalidPageTypes,
		Types:   [2]PageType{front.Type(), back.Type()},
	}

	switch f := front.(type) {
	case BMDPage:
		// A machine-marked ballot prints its entire summary on one
		// side; the back must be blank, or at worst unreadable noise.
		if !pageIsBlankLike(back) {
			return typeErr
		}
		return nil

	case HMPBPage:
		b, ok := back.(HMPBPage)
		if !ok {
			return typeErr
		}
		return checkHMPBPair(f, b)

	default:
		if pageIsReadable(back) {
			return typeErr
		}
		return nil
	}
}

// checkHMPBPair validates two hand-marked sides. Mismatches report the
// first violated field in priority order: page-number adjacency, ballot
// style, precinct, ballot type, election hash.
func checkHMPBPair(front, back HMPBPage) *SheetValidationError {
	fm, bm := front.Metadata, back.Metadata

	diff := fm.PageNumber - bm.PageNumber
	if diff != 1 && diff != -1 {
		return &SheetValidationError{
			Failure:     FailureNonConsecutivePages,
			PageNumbers: [2]int{fm.PageNumber, bm.PageNumber},
		}
	}
	if fm.BallotStyleID != bm.BallotStyleID {
		return &SheetValidationError{
			Failure: FailureMismatchedBallotStyle,
			Values:  [2]string{fm.BallotStyleID, bm.BallotStyleID},
		}
	}
	if fm.PrecinctID != bm.PrecinctID {
		return &SheetValidationError{
			Failure: FailureMismatchedPrecinct,
			Values:  [2]string{fm.PrecinctID, bm.PrecinctID},
		}
	}
	if fm.BallotType != bm.BallotType {
		return &SheetValidationError{
			Failure: FailureMismatchedBallotType,
			Values:  [2]string{string(fm.BallotType), string(bm.BallotType)},
		}
	}
	if fm.ElectionHash != bm.ElectionHash {
		return &SheetValidationError{
			Failure: FailureMismatchedElectionHash,
			Values:  [2]string{fm.ElectionHash, bm.ElectionHash},
		}
	}
	return nil
}

// CanonicalizeSheet orients a scanned pair and then validates it. The
// lower hand-marked page number becomes the front; for other pairings
// the readable side becomes the front. Reordering always happens before
// validation so callers never need to pre-sort.
func CanonicalizeSheet(a, b SheetSide) (front, back SheetSide, err *SheetValidationError) {
	front, back = a, b

	af, aIsHMPB := a.Interpretation.(HMPBPage)
	bf, bIsHMPB := b.Interpretation.(HMPBPage)
	switch {
	case aIsHMPB && bIsHMPB:
		if af.Metadata.PageNumber > bf.Metadata.PageNumber {
			front, back = b, a
		}
	default:
		if !pageIsReadable(a.Interpretation) && pageIsReadable(b.Interpretation) {
			front, back = b, a
		}
	}

	err = ValidateSheet(front.Interpretation, back.Interpretation)
	return front, back, err
}
