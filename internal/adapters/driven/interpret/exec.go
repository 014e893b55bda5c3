// Package interpret shells out to an external ballot interpreter: one
// subprocess per sheet, a JSON request on stdin and a JSON response on
// stdout. The interpreter owns all image analysis; this adapter only
// frames the exchange and decodes the tagged page variants.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/logger"
)

// Ensure Interpreter implements the interface.
var _ driven.SheetInterpreter = (*Interpreter)(nil)

// Interpreter runs an external interpreter binary.
type Interpreter struct {
	binary string
}

// NewInterpreter creates an adapter around the given binary.
func NewInterpreter(binary string) *Interpreter {
	return &Interpreter{binary: binary}
}

type request struct {
	Election      domain.ElectionDefinition   `json:"election"`
	ElectionHash  string                      `json:"electionHash"`
	TestMode      bool                        `json:"testMode"`
	ReviewReasons []domain.AdjudicationReason `json:"adjudicationReasons"`
	FrontPath     string                      `json:"frontPath"`
	BackPath      string                      `json:"backPath"`
}

type pageResponse struct {
	Interpretation      json.RawMessage `json:"interpretation"`
	OriginalImagePath   string          `json:"originalImagePath"`
	NormalizedImagePath string          `json:"normalizedImagePath"`
}

type response struct {
	Front pageResponse `json:"front"`
	Back  pageResponse `json:"back"`
}

// Interpret decodes both sides of a sheet by running the interpreter
// binary once.
func (i *Interpreter) Interpret(
	ctx context.Context,
	election *domain.Election,
	reviewReasons []domain.AdjudicationReason,
	frontPath, backPath string,
) (*driven.InterpretedSheet, error) {
	payload, err := buildRequest(election, reviewReasons, frontPath, backPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, i.binary)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Interpreting %s / %s", frontPath, backPath)
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("run interpreter: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("run interpreter: %w", err)
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode interpreter response: %w", err)
	}

	front, err := decodePage(resp.Front, frontPath)
	if err != nil {
		return nil, fmt.Errorf("decode front page: %w", err)
	}
	back, err := decodePage(resp.Back, backPath)
	if err != nil {
		return nil, fmt.Errorf("decode back page: %w", err)
	}
	return &driven.InterpretedSheet{Front: *front, Back: *back}, nil
}

// buildRequest frames one sheet's interpretation request.
func buildRequest(
	election *domain.Election,
	reviewReasons []domain.AdjudicationReason,
	frontPath, backPath string,
) ([]byte, error) {
	payload, err := json.Marshal(request{
		Election:      election.Definition,
		ElectionHash:  election.ElectionHash,
		TestMode:      election.TestMode,
		ReviewReasons: reviewReasons,
		FrontPath:     frontPath,
		BackPath:      backPath,
	})
	if err != nil {
		return nil, fmt.Errorf("encode interpreter request: %w", err)
	}
	return payload, nil
}

// decodePage turns one side's response into a PageResult, falling back
// to the scanned path when the interpreter omits the original.
func decodePage(page pageResponse, scannedPath string) (*driven.PageResult, error) {
	interpretation, err := domain.UnmarshalPage(page.Interpretation)
	if err != nil {
		return nil, err
	}
	original := page.OriginalImagePath
	if original == "" {
		original = scannedPath
	}
	return &driven.PageResult{
		Interpretation:      interpretation,
		OriginalImagePath:   original,
		NormalizedImagePath: page.NormalizedImagePath,
	}, nil
}
