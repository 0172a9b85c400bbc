package api

import (
	"fmt"

	"github.com/cardcity/scoring-go/internal/board"
	"github.com/cardcity/scoring-go/internal/formula"
	"github.com/cardcity/scoring-go/internal/scoring"
)

// EngineVersion is reported on every response.
const EngineVersion = "1.0.0"

// Error type identifiers used in structured error responses.
const (
	ErrTypeValidation  = "VALIDATION_ERROR"
	ErrTypeCompilation = "COMPILATION_ERROR"
	ErrTypeNotFound    = "NOT_FOUND"
	ErrTypeInternal    = "INTERNAL_ERROR"
)

// APIError is the structured error payload.
type APIError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ValidationError flags malformed metadata or board input from the editor.
// It is an API-boundary fault, never an engine fault.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ScoreRequest scores a placement log under a configuration.
type ScoreRequest struct {
	Placements []board.Placement   `json:"placements"`
	Config     scoring.ScoreConfig `json:"config"`
}

// CompileRequest compiles formula source without persisting anything.
type CompileRequest struct {
	Source string `json:"source"`
}

// DraftCompileState is the poll response for draft compilation. Ready is
// false until a first draft has cleared the debounce quiet period.
type DraftCompileState struct {
	Ready  bool                       `json:"ready"`
	Result *formula.CompilationResult `json:"result,omitempty"`
}

// RunTestsRequest runs a stored condition's test cases. With a CaseIndex it
// runs just that case; otherwise all of them.
type RunTestsRequest struct {
	CaseIndex *int `json:"caseIndex,omitempty"`
	Debug     bool `json:"debug,omitempty"`
}

// validatePlacements is the data-entry gate: downstream analysis assumes
// well-formed segments, so reject anything out of range here.
func validatePlacements(placements []board.Placement) *ValidationError {
	for i, p := range placements {
		if p.Rotation != 0 && p.Rotation != 180 {
			return &ValidationError{
				Field:   fmt.Sprintf("placements[%d].rotation", i),
				Message: fmt.Sprintf("must be 0 or 180, got %d", p.Rotation),
			}
		}
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				for j, seg := range p.Cells[r][c].Roads {
					if !seg.From.Valid() || !seg.To.Valid() {
						return &ValidationError{
							Field:   fmt.Sprintf("placements[%d].cells[%d][%d].roads[%d]", i, r, c, j),
							Message: "edge indices must be in [0,3]",
						}
					}
				}
			}
		}
	}
	return nil
}

// validateCondition checks editor-supplied condition metadata.
func validateCondition(cond *scoring.ScoringCondition) *ValidationError {
	if cond.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if cond.Source == "" {
		return &ValidationError{Field: "source", Message: "must not be empty"}
	}
	for i, tc := range cond.TestCases {
		if v := validatePlacements(tc.Placements); v != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("testCases[%d].%s", i, v.Field),
				Message: v.Message,
			}
		}
	}
	return nil
}
