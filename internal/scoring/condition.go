// Package scoring turns a placement log and a scoring configuration into a
// deterministic ScoreResult: the cluster/road base score plus the points
// contributed by player-authored scoring conditions.
package scoring

import (
	"github.com/dop251/goja"

	"github.com/cardcity/scoring-go/internal/board"
	"github.com/cardcity/scoring-go/internal/formula"
)

// TestCase is an author-supplied fixture run for one condition: a board
// (either a named built-in fixture or inline placements) and an optional
// expected score.
type TestCase struct {
	Name          string            `json:"name"`
	Fixture       string            `json:"fixture,omitempty"`
	Placements    []board.Placement `json:"placements,omitempty"`
	ExpectedScore *float64          `json:"expectedScore,omitempty"`
}

// ScoringCondition is a named, player-authored scoring rule. The compiled
// artifact is private and only ever non-nil after the source passed both
// compilation and security validation.
type ScoringCondition struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Source             string     `json:"source"`
	CompiledSource     string     `json:"compiledSource,omitempty"`
	TargetContribution float64    `json:"targetContribution"`
	IsGlobal           bool       `json:"isGlobal"`
	TestCases          []TestCase `json:"testCases"`

	program *goja.Program
}

// Compile runs the condition's source through the formula pipeline. On
// success the artifact is retained and CompiledSource records the exact
// source it was built from; on failure any previous artifact is dropped
// (fail closed).
func (c *ScoringCondition) Compile() formula.CompilationResult {
	res := formula.Compile(c.Source)
	if res.OK {
		c.program = res.Program
		c.CompiledSource = c.Source
	} else {
		c.program = nil
		c.CompiledSource = ""
	}
	return res
}

// Compiled reports whether the condition holds a validated artifact for its
// current source. A CompiledSource differing from Source means the source
// was edited since; the artifact is stale and unusable.
func (c *ScoringCondition) Compiled() bool {
	return c.program != nil && c.CompiledSource == c.Source
}

// Program returns the validated artifact, or nil.
func (c *ScoringCondition) Program() *goja.Program {
	if !c.Compiled() {
		return nil
	}
	return c.program
}
