package domain

// SheetRequiresAdjudication decides whether a human must review a
// validated sheet before it counts. The rules apply in order and the
// result is independent of which side is passed first:
//
//  1. A decoded machine-marked ballot on either side never needs
//     review; the summary is self-describing.
//  2. Non-blank review reasons are dominant: an unreadable page, any
//     invalid-X page, or a hand-marked page flagged for anything other
//     than blankness forces review.
//  3. A hand-marked page paired with a non-hand-marked, non-blank-like
//     page forces review; mixed sheet types are suspicious.
//  4. Blankness is recessive: only when both sides look blank is the
//     sheet the blank-ballot signal worth a human look.
//  5. Otherwise the sheet is auto-accepted.
func SheetRequiresAdjudication(front, back PageInterpretation) bool {
	sides := [2]PageInterpretation{front, back}

	// Rule 1: machine ballots are never reviewed at the image level.
	for _, side := range sides {
		if side.Type() == PageTypeBMD {
			return false
		}
	}

	// Rule 2: dominant non-blank reasons.
	for _, side := range sides {
		if pageHasNonBlankReviewReason(side) {
			return true
		}
	}

	// Rule 3: a hand-marked side next to a readable non-hand-marked,
	// non-blank-like side.
	for i, side := range sides {
		other := sides[1-i]
		if side.Type() == PageTypeHMPB && other.Type() != PageTypeHMPB && !pageLooksBlank(other) {
			return true
		}
	}

	// Rule 4: recessive blankness; both sides must look blank.
	return pageLooksBlank(front) && pageLooksBlank(back)
}

// pageHasNonBlankReviewReason reports whether a page carries a review
// condition unrelated to blankness.
func pageHasNonBlankReviewReason(p PageInterpretation) bool {
	switch page := p.(type) {
	case UnreadablePage, InvalidTestModePage, InvalidPrecinctPage, InvalidElectionPage, InvalidMetadataPage:
		return true
	case HMPBPage:
		for _, reason := range page.AdjudicationReasons {
			if reason != ReasonBlankBallot {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// pageLooksBlank reports whether a page counts as blank for the
// recessive blank rule: a truly blank page, a hand-marked page with no
// candidate marks, or a hand-marked page flagged as a blank ballot.
func pageLooksBlank(p PageInterpretation) bool {
	switch page := p.(type) {
	case BlankPage:
		return true
	case HMPBPage:
		return !page.HasMarks() || page.HasReason(ReasonBlankBallot)
	default:
		return false
	}
}

// SheetIsUncastable reports whether a review-pending sheet could never
// be counted as-is: either side is unreadable or one of the invalid
// page markers. Hand-marked ambiguity, including blankness, is merely
// reviewable.
func SheetIsUncastable(front, back PageInterpretation) bool {
	for _, side := range [2]PageInterpretation{front, back} {
		switch side.Type() {
		case PageTypeUnreadable, PageTypeInvalidTestMode, PageTypeInvalidPrecinct,
			PageTypeInvalidElection, PageTypeInvalidMetadata:
			return true
		}
	}
	return false
}
