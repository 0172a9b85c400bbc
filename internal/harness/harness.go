package harness

import (
	"fmt"
	"math"

	"github.com/cardcity/scoring-go/internal/board"
	"github.com/cardcity/scoring-go/internal/formula"
	"github.com/cardcity/scoring-go/internal/scoring"
)

// scoreTolerance is the allowed delta when comparing to an expected score.
const scoreTolerance = 1e-9

// TestRunResult reports one test case's outcome: the computed score, the
// sandbox timing, and the pass/fail verdict when the case carried an
// expectation. Passed is nil when there was nothing to compare against.
type TestRunResult struct {
	Name            string             `json:"name"`
	Score           float64            `json:"score"`
	ExecutionTimeMs float64            `json:"executionTimeMs"`
	Error           string             `json:"error,omitempty"`
	Expected        *float64           `json:"expected,omitempty"`
	Passed          *bool              `json:"passed,omitempty"`
	Logs            []formula.LogEntry `json:"logs,omitempty"`
}

// RunTest compiles the condition if needed and executes it against the test
// case's board. Compile and security failures surface in the result's Error;
// they never panic or abort a surrounding RunAllTests.
func RunTest(cond *scoring.ScoringCondition, tc scoring.TestCase, opts formula.Options) TestRunResult {
	result := TestRunResult{Name: tc.Name, Expected: tc.ExpectedScore}

	placements, err := resolveBoard(tc)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if !cond.Compiled() {
		if res := cond.Compile(); !res.OK {
			result.Error = res.Error
			return result
		}
	}

	snap := formula.SnapshotOf(placements)
	out := formula.Execute(cond.Program(), snap, opts)
	result.ExecutionTimeMs = float64(out.Duration.Microseconds()) / 1000.0
	result.Logs = out.Logs
	if out.Err != nil {
		result.Error = out.Err.Message
		if tc.ExpectedScore != nil {
			failed := false
			result.Passed = &failed
		}
		return result
	}

	result.Score = out.Score
	if tc.ExpectedScore != nil {
		passed := math.Abs(out.Score-*tc.ExpectedScore) <= scoreTolerance
		result.Passed = &passed
	}
	return result
}

// RunAllTests executes every test case attached to the condition, in order,
// never short-circuiting on failure.
func RunAllTests(cond *scoring.ScoringCondition, opts formula.Options) []TestRunResult {
	results := make([]TestRunResult, 0, len(cond.TestCases))
	for _, tc := range cond.TestCases {
		results = append(results, RunTest(cond, tc, opts))
	}
	return results
}

// resolveBoard picks the test case's board: inline placements win over a
// named fixture; no board at all means the empty fixture.
func resolveBoard(tc scoring.TestCase) ([]board.Placement, error) {
	if len(tc.Placements) > 0 {
		return tc.Placements, nil
	}
	name := tc.Fixture
	if name == "" {
		name = FixtureEmpty
	}
	placements, ok := Fixture(name)
	if !ok {
		return nil, fmt.Errorf("unknown fixture %q", name)
	}
	return placements, nil
}
