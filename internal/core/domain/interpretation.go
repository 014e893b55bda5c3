package domain

import (
	"encoding/json"
	"fmt"
)

// PageType tags the variants of PageInterpretation.
type PageType string

const (
	// PageTypeBMD is a machine-marked ballot with decoded votes.
	PageTypeBMD PageType = "bmd"
	// PageTypeHMPB is a hand-marked paper ballot page.
	PageTypeHMPB PageType = "hmpb"
	// PageTypeBlank is a page with no detectable content.
	PageTypeBlank PageType = "blank"
	// PageTypeUnreadable is a page that could not be interpreted.
	PageTypeUnreadable PageType = "unreadable"
	// PageTypeInvalidTestMode is a ballot whose test-mode flag does not
	// match the configured election.
	PageTypeInvalidTestMode PageType = "invalid-test-mode"
	// PageTypeInvalidPrecinct is a ballot for a precinct not in the
	// configured election.
	PageTypeInvalidPrecinct PageType = "invalid-precinct"
	// PageTypeInvalidElection is a ballot for a different election.
	PageTypeInvalidElection PageType = "invalid-election"
	// PageTypeInvalidMetadata is a ballot whose printed metadata is
	// internally inconsistent.
	PageTypeInvalidMetadata PageType = "invalid-metadata"
)

// AdjudicationReason is a condition on a hand-marked page that may
// require human review.
type AdjudicationReason string

const (
	ReasonOvervote        AdjudicationReason = "overvote"
	ReasonUndervote       AdjudicationReason = "undervote"
	ReasonMarginalMark    AdjudicationReason = "marginal-mark"
	ReasonWriteIn         AdjudicationReason = "write-in"
	ReasonBlankBallot     AdjudicationReason = "blank-ballot"
	ReasonUninterpretable AdjudicationReason = "uninterpretable"
)

// PageInterpretation is the tagged variant produced by the sheet
// interpreter for one side of a scanned sheet. Each variant is a
// concrete struct; Type identifies the variant.
type PageInterpretation interface {
	Type() PageType
}

// BMDPage is a machine-marked ballot summary decoded from its printed
// encoding. Machine ballots are self-describing and never reviewed at
// the image level.
type BMDPage struct {
	// BallotID is the id encoded on the ballot summary.
	BallotID string `json:"ballotId"`

	// Votes maps contest id to the selected option ids.
	Votes map[string][]string `json:"votes"`
}

func (BMDPage) Type() PageType { return PageTypeBMD }

// PageMetadata is the printed metadata of a hand-marked ballot page.
type PageMetadata struct {
	BallotStyleID string     `json:"ballotStyleId"`
	PrecinctID    string     `json:"precinctId"`
	BallotType    BallotType `json:"ballotType"`
	ElectionHash  string     `json:"electionHash"`
	PageNumber    int        `json:"pageNumber"`
}

// HMPBPage is one side of a hand-marked paper ballot, interpreted from
// detected pen or pencil marks.
type HMPBPage struct {
	// Votes maps contest id to the detected option selections.
	Votes map[string][]string `json:"votes"`

	// MarkScores maps option id to the detected mark score in [0, 1].
	MarkScores map[string]float64 `json:"markScores"`

	// AdjudicationReasons lists the review conditions detected on
	// this page.
	AdjudicationReasons []AdjudicationReason `json:"adjudicationReasons"`

	// Metadata is the printed page metadata.
	Metadata PageMetadata `json:"metadata"`
}

func (HMPBPage) Type() PageType { return PageTypeHMPB }

// HasMarks reports whether any candidate mark was detected on the page.
func (p HMPBPage) HasMarks() bool {
	for _, options := range p.Votes {
		if len(options) > 0 {
			return true
		}
	}
	return false
}

// HasReason reports whether the page was flagged with the given reason.
func (p HMPBPage) HasReason(reason AdjudicationReason) bool {
	for _, r := range p.AdjudicationReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// BlankPage is a page with no detectable content.
type BlankPage struct{}

func (BlankPage) Type() PageType { return PageTypeBlank }

// UnreadablePage is a page that could not be interpreted.
type UnreadablePage struct {
	// Reason describes why the page was unreadable.
	Reason string `json:"reason"`
}

func (UnreadablePage) Type() PageType { return PageTypeUnreadable }

// InvalidTestModePage is a ballot whose test-mode flag does not match
// the configured election.
type InvalidTestModePage struct {
	// TestMode is the flag the ballot carried.
	TestMode bool `json:"testMode"`
}

func (InvalidTestModePage) Type() PageType { return PageTypeInvalidTestMode }

// InvalidPrecinctPage is a ballot for a precinct not present in the
// configured election.
type InvalidPrecinctPage struct {
	// PrecinctID is the precinct the ballot carried.
	PrecinctID string `json:"precinctId"`
}

func (InvalidPrecinctPage) Type() PageType { return PageTypeInvalidPrecinct }

// InvalidElectionPage is a ballot printed for a different election.
type InvalidElectionPage struct {
	// ElectionHash is the hash the ballot carried.
	ElectionHash string `json:"electionHash"`
}

func (InvalidElectionPage) Type() PageType { return PageTypeInvalidElection }

// InvalidMetadataPage is a ballot whose printed metadata is internally
// inconsistent.
type InvalidMetadataPage struct {
	// Reason describes the inconsistency.
	Reason string `json:"reason"`
}

func (InvalidMetadataPage) Type() PageType { return PageTypeInvalidMetadata }

// pageEnvelope is the serialised form of a PageInterpretation: a type
// tag plus the variant payload. Stores treat the encoding as opaque.
type pageEnvelope struct {
	Type PageType        `json:"type"`
	Page json.RawMessage `json:"page"`
}

// MarshalPage serialises a page interpretation to its opaque blob form.
func MarshalPage(p PageInterpretation) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal page: %w", ErrInvalidInput)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal page payload: %w", err)
	}
	return json.Marshal(pageEnvelope{Type: p.Type(), Page: payload})
}

// UnmarshalPage deserialises a page interpretation from its blob form.
func UnmarshalPage(data []byte) (PageInterpretation, error) {
	var env pageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal page envelope: %w", err)
	}

	var page PageInterpretation
	switch env.Type {
	case PageTypeBMD:
		page = &BMDPage{}
	case PageTypeHMPB:
		page = &HMPBPage{}
	case PageTypeBlank:
		page = &BlankPage{}
	case PageTypeUnreadable:
		page = &UnreadablePage{}
	case PageTypeInvalidTestMode:
		page = &InvalidTestModePage{}
	case PageTypeInvalidPrecinct:
		page = &InvalidPrecinctPage{}
	case PageTypeInvalidElection:
		page = &InvalidElectionPage{}
	case PageTypeInvalidMetadata:
		page = &InvalidMetadataPage{}
	default:
		return nil, fmt.Errorf("unmarshal page: unknown type %q: %w", env.Type, ErrInvalidInput)
	}

	if len(env.Page) > 0 {
		if err := json.Unmarshal(env.Page, page); err != nil {
			return nil, fmt.Errorf("unmarshal %s page: %w", env.Type, err)
		}
	}
	return deref(page), nil
}

// deref returns the value form of the decoded variant so that pages
// round-trip as the same concrete types callers construct.
func deref(p PageInterpretation) PageInterpretation {
	switch v := p.(type) {
	case *BMDPage:
		return *v
	case *HMPBPage:
		return *v
	case *BlankPage:
		return *v
	case *UnreadablePage:
		return *v
	case *InvalidTestModePage:
		return *v
	case *InvalidPrecinctPage:
		return *v
	case *InvalidElectionPage:
		return *v
	case *InvalidMetadataPage:
		return *v
	default:
		return p
	}
}
