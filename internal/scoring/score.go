package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardcity/scoring-go/internal/board"
	"github.com/cardcity/scoring-go/internal/formula"
)

// conditionPrecision is the decimal precision condition points are rounded
// to before aggregation, so repeated and reordered runs sum identically.
const conditionPrecision = 8

// ScoreConfig is the scoring configuration handed over by the game-state
// machine: the informational target plus scoring policy and the ordered
// active conditions.
type ScoreConfig struct {
	// TargetScore is carried into the result for UI comparison only; it
	// never influences scoring math.
	TargetScore float64 `json:"targetScore"`

	// TypeMultipliers scales the largest-cluster contribution per zone
	// type. Types without an entry use 1.
	TypeMultipliers map[string]float64 `json:"typeMultipliers,omitempty"`

	// RoadPenaltyPerNetwork is subtracted once per distinct road network.
	// Zero means the default of 1.
	RoadPenaltyPerNetwork float64 `json:"roadPenaltyPerNetwork,omitempty"`

	// Conditions are evaluated in order; their order affects only the
	// reported breakdown, never the total.
	Conditions []*ScoringCondition `json:"conditions,omitempty"`

	// ExecTimeout bounds each condition's sandbox run; zero uses the
	// formula default.
	ExecTimeout time.Duration `json:"-"`
}

// ConditionScore is one condition's contribution to the score breakdown.
// Deliberately free of timing or log diagnostics: identical inputs must
// yield byte-identical results, and per-run timing lives on the test
// harness path instead.
type ConditionScore struct {
	ConditionID string  `json:"conditionId"`
	Name        string  `json:"name"`
	Points      float64 `json:"points"`
	Error       string  `json:"error,omitempty"`
}

// ScoreResult is the complete, deterministic scoring breakdown.
type ScoreResult struct {
	BaseScore       float64            `json:"baseScore"`
	ClusterScores   map[string]float64 `json:"clusterScores"`
	RoadPenalty     float64            `json:"roadPenalty"`
	ConditionScores []ConditionScore   `json:"conditionScores"`
	ConditionTotal  float64            `json:"conditionTotal"`
	TotalScore      float64            `json:"totalScore"`
	TargetScore     float64            `json:"targetScore"`
}

// ComputeScore scores a board against a configuration. Pure: it never
// mutates its inputs, allocates fresh state per call, and identical inputs
// yield identical results. A failing condition contributes 0 points and its
// error message; it never blocks the base score or sibling conditions.
//
// Safe for concurrent calls. An uncompiled condition is compiled into a
// call-local artifact and left untouched, so repeated scoring pays the
// compile each time; precompile via ScoringCondition.Compile to cache.
func ComputeScore(placements []board.Placement, cfg ScoreConfig) ScoreResult {
	snap := formula.SnapshotOf(placements)
	result := ScoreResult{
		ClusterScores: make(map[string]float64),
		TargetScore:   cfg.TargetScore,
	}

	// Base score: each zone type's largest cluster, scaled by its
	// multiplier, summed in sorted type order for reproducibility.
	zones := make([]string, 0, len(snap.Largest))
	for zone := range snap.Largest {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	base := decimal.Zero
	for _, zone := range zones {
		points := float64(snap.Largest[zone].Size) * typeMultiplier(cfg, zone)
		result.ClusterScores[zone] = points
		base = base.Add(decimal.NewFromFloat(points))
	}
	result.BaseScore = base.InexactFloat64()

	// Road penalty: one hit per distinct network, never positive. The
	// explicit zero guard avoids producing negative zero.
	if n := len(snap.Networks); n > 0 {
		penalty := cfg.RoadPenaltyPerNetwork
		if penalty == 0 {
			penalty = 1
		}
		result.RoadPenalty = -float64(n) * penalty
	}

	// Conditions, in list order. Summation uses fixed-precision decimals
	// so the total is independent of condition order.
	opts := formula.Options{Timeout: cfg.ExecTimeout}
	total := decimal.Zero
	for _, cond := range cfg.Conditions {
		cs := runCondition(cond, snap, opts)
		result.ConditionScores = append(result.ConditionScores, cs)
		total = total.Add(decimal.NewFromFloat(cs.Points))
	}
	result.ConditionTotal = total.InexactFloat64()

	result.TotalScore = decimal.NewFromFloat(result.BaseScore).
		Add(decimal.NewFromFloat(result.RoadPenalty)).
		Add(total).
		InexactFloat64()
	return result
}

// runCondition executes one condition in the sandbox. When the caller
// didn't precompile, the source is compiled into a local artifact; the
// condition itself is never written to.
func runCondition(cond *ScoringCondition, snap *formula.Snapshot, opts formula.Options) ConditionScore {
	cs := ConditionScore{ConditionID: cond.ID, Name: cond.Name}

	program := cond.Program()
	if program == nil {
		res := formula.Compile(cond.Source)
		if !res.OK {
			cs.Error = res.Error
			return cs
		}
		program = res.Program
	}

	out := formula.Execute(program, snap, opts)
	if out.Err != nil {
		cs.Error = out.Err.Message
		return cs
	}
	cs.Points = decimal.NewFromFloat(out.Score).Round(conditionPrecision).InexactFloat64()
	return cs
}

func typeMultiplier(cfg ScoreConfig, zone string) float64 {
	if m, ok := cfg.TypeMultipliers[zone]; ok {
		return m
	}
	return 1
}

// Summarize exposes the tile map snapshot with its cluster and road-network
// coordinate lists for the rendering layer.
func Summarize(placements []board.Placement) *formula.Snapshot {
	return formula.SnapshotOf(placements)
}
