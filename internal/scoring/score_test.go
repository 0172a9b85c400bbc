package scoring

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/cardcity/scoring-go/internal/board"
)

func fullCard(x, y int, zone string) board.Placement {
	cell := board.Cell{Zone: zone}
	return board.Placement{
		X:     x,
		Y:     y,
		Cells: [2][2]board.Cell{{cell, cell}, {cell, cell}},
	}
}

func mixedCard(x, y int) board.Placement {
	return board.Placement{
		X: x, Y: y,
		Cells: [2][2]board.Cell{
			{{Zone: "residential"}, {Zone: "commercial"}},
			{{Zone: "park"}, {Zone: "industrial"}},
		},
	}
}

func condition(id, source string) *ScoringCondition {
	return &ScoringCondition{ID: id, Name: id, Source: source}
}

func TestComputeScoreEmptyBoard(t *testing.T) {
	result := ComputeScore(nil, ScoreConfig{TargetScore: 50})
	if result.BaseScore != 0 {
		t.Errorf("baseScore: expected 0, got %v", result.BaseScore)
	}
	if len(result.ClusterScores) != 0 {
		t.Errorf("expected no cluster scores, got %v", result.ClusterScores)
	}
	if result.RoadPenalty != 0 {
		t.Errorf("roadPenalty: expected 0, got %v", result.RoadPenalty)
	}
	if result.TotalScore != 0 {
		t.Errorf("totalScore: expected 0, got %v", result.TotalScore)
	}
	if result.TargetScore != 50 {
		t.Errorf("targetScore must be carried through, got %v", result.TargetScore)
	}
}

func TestComputeScoreSingleMixedCard(t *testing.T) {
	result := ComputeScore([]board.Placement{mixedCard(0, 0)}, ScoreConfig{})

	if len(result.ClusterScores) != 4 {
		t.Fatalf("expected 4 per-type scores, got %d", len(result.ClusterScores))
	}
	for _, zone := range []string{"residential", "commercial", "park", "industrial"} {
		if result.ClusterScores[zone] != 1 {
			t.Errorf("%s: expected 1, got %v", zone, result.ClusterScores[zone])
		}
	}
	if result.BaseScore != 4 {
		t.Errorf("baseScore: expected 4, got %v", result.BaseScore)
	}
	if result.RoadPenalty != 0 {
		t.Errorf("roadPenalty: expected 0 without roads, got %v", result.RoadPenalty)
	}
}

func TestComputeScoreAdjacentCardsMergeClusters(t *testing.T) {
	placements := []board.Placement{
		fullCard(0, 0, "residential"),
		fullCard(2, 0, "residential"),
	}
	result := ComputeScore(placements, ScoreConfig{})
	if result.ClusterScores["residential"] != 8 {
		t.Errorf("expected merged cluster of 8, got %v", result.ClusterScores["residential"])
	}
	if result.BaseScore != 8 {
		t.Errorf("baseScore: expected 8, got %v", result.BaseScore)
	}
}

func TestComputeScoreTypeMultiplier(t *testing.T) {
	result := ComputeScore([]board.Placement{mixedCard(0, 0)}, ScoreConfig{
		TypeMultipliers: map[string]float64{"park": 3},
	})
	if result.ClusterScores["park"] != 3 {
		t.Errorf("park with multiplier 3: expected 3, got %v", result.ClusterScores["park"])
	}
	if result.BaseScore != 6 {
		t.Errorf("baseScore: expected 6, got %v", result.BaseScore)
	}
}

func TestComputeScoreRoadPenalty(t *testing.T) {
	road := board.Cell{Zone: "road", Roads: []board.RoadSegment{{From: board.EdgeLeft, To: board.EdgeRight}}}
	plain := board.Cell{Zone: "road"}
	p := board.Placement{
		Cells: [2][2]board.Cell{
			{road, plain},
			{plain, road}, // diagonal: two disconnected networks
		},
	}
	result := ComputeScore([]board.Placement{p}, ScoreConfig{})
	if result.RoadPenalty != -2 {
		t.Errorf("expected -2 for two networks, got %v", result.RoadPenalty)
	}

	weighted := ComputeScore([]board.Placement{p}, ScoreConfig{RoadPenaltyPerNetwork: 2.5})
	if weighted.RoadPenalty != -5 {
		t.Errorf("expected -5 with per-network penalty 2.5, got %v", weighted.RoadPenalty)
	}
}

func TestComputeScoreConditions(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0)}
	cfg := ScoreConfig{
		Conditions: []*ScoringCondition{
			condition("tiles", `function calculateScore(ctx) { return ctx.tiles().length; }`),
			condition("parks", `function calculateScore(ctx) { return ctx.largestCluster("park").size * 10; }`),
		},
	}
	result := ComputeScore(placements, cfg)

	if len(result.ConditionScores) != 2 {
		t.Fatalf("expected 2 condition scores, got %d", len(result.ConditionScores))
	}
	if result.ConditionScores[0].Points != 4 {
		t.Errorf("tiles condition: expected 4, got %v", result.ConditionScores[0].Points)
	}
	if result.ConditionScores[1].Points != 10 {
		t.Errorf("parks condition: expected 10, got %v", result.ConditionScores[1].Points)
	}
	if result.ConditionTotal != 14 {
		t.Errorf("conditionTotal: expected 14, got %v", result.ConditionTotal)
	}
	if result.TotalScore != result.BaseScore+result.RoadPenalty+result.ConditionTotal {
		t.Errorf("totalScore mismatch: %v", result.TotalScore)
	}
}

func TestComputeScoreFailingConditionIsIsolated(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0)}
	cfg := ScoreConfig{
		Conditions: []*ScoringCondition{
			condition("ok-1", `function calculateScore(ctx) { return 5; }`),
			condition("boom", `function calculateScore(ctx) { throw new Error("kaput"); }`),
			condition("ok-2", `function calculateScore(ctx) { return 3; }`),
		},
	}
	result := ComputeScore(placements, cfg)

	if result.ConditionScores[1].Points != 0 {
		t.Errorf("failing condition must score 0, got %v", result.ConditionScores[1].Points)
	}
	if !strings.Contains(result.ConditionScores[1].Error, "kaput") {
		t.Errorf("expected the captured error, got %q", result.ConditionScores[1].Error)
	}
	if result.ConditionScores[0].Points != 5 || result.ConditionScores[2].Points != 3 {
		t.Error("sibling conditions must contribute normally")
	}
	if result.ConditionTotal != 8 {
		t.Errorf("conditionTotal: expected 8, got %v", result.ConditionTotal)
	}
}

func TestComputeScoreUncompilableConditionScoresZero(t *testing.T) {
	cfg := ScoreConfig{
		Conditions: []*ScoringCondition{
			condition("bad", `function wrongName(ctx) { return 1; }`),
		},
	}
	result := ComputeScore([]board.Placement{mixedCard(0, 0)}, cfg)
	cs := result.ConditionScores[0]
	if cs.Points != 0 || cs.Error == "" {
		t.Errorf("expected 0 points with an error, got %+v", cs)
	}
}

func TestComputeScoreIdempotent(t *testing.T) {
	placements := []board.Placement{
		mixedCard(0, 0),
		fullCard(2, 0, "residential"),
	}
	cfg := ScoreConfig{
		TargetScore: 25,
		Conditions: []*ScoringCondition{
			condition("c", `function calculateScore(ctx) { return ctx.allClusters().length * 1.5; }`),
		},
	}

	first, err := json.Marshal(ComputeScore(placements, cfg))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(ComputeScore(placements, cfg))
		if err != nil {
			t.Fatal(err)
		}
		if string(first) != string(again) {
			t.Fatalf("run %d: ScoreResult not byte-identical\nfirst: %s\nagain: %s", i, first, again)
		}
	}
}

func TestComputeScoreReorderingInvariance(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0)}
	a := condition("a", `function calculateScore(ctx) { return 0.1; }`)
	b := condition("b", `function calculateScore(ctx) { return 0.2; }`)
	c := condition("c", `function calculateScore(ctx) { return 0.3; }`)

	forward := ComputeScore(placements, ScoreConfig{Conditions: []*ScoringCondition{a, b, c}})
	backward := ComputeScore(placements, ScoreConfig{Conditions: []*ScoringCondition{c, b, a}})

	if forward.ConditionTotal != backward.ConditionTotal {
		t.Errorf("conditionTotal must be order-independent: %v vs %v",
			forward.ConditionTotal, backward.ConditionTotal)
	}
	if forward.ConditionScores[0].ConditionID != "a" || backward.ConditionScores[0].ConditionID != "c" {
		t.Error("breakdown order must follow the active-conditions list")
	}
}

func TestComputeScoreDoesNotMutateInputs(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0)}
	snapshot, _ := json.Marshal(placements)

	cfg := ScoreConfig{
		TypeMultipliers: map[string]float64{"park": 2},
		Conditions: []*ScoringCondition{
			condition("c", `function calculateScore(ctx) { return 1; }`),
		},
	}
	ComputeScore(placements, cfg)

	after, _ := json.Marshal(placements)
	if string(snapshot) != string(after) {
		t.Error("ComputeScore mutated the placement log")
	}
	if cfg.TypeMultipliers["park"] != 2 {
		t.Error("ComputeScore mutated the config")
	}
}

func TestComputeScoreLeavesConditionUncompiled(t *testing.T) {
	cond := condition("c", `function calculateScore(ctx) { return ctx.tiles().length; }`)
	result := ComputeScore([]board.Placement{mixedCard(0, 0)}, ScoreConfig{
		Conditions: []*ScoringCondition{cond},
	})

	if result.ConditionScores[0].Points != 4 {
		t.Errorf("expected 4 points, got %v", result.ConditionScores[0].Points)
	}
	if cond.Compiled() {
		t.Error("ComputeScore must not compile its input condition in place")
	}
	if cond.CompiledSource != "" || cond.Program() != nil {
		t.Errorf("ComputeScore mutated its input condition: %+v", cond)
	}
}

func TestComputeScoreConcurrentUncompiledCondition(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0), fullCard(2, 0, "residential")}
	cond := condition("c", `function calculateScore(ctx) { return ctx.tiles().length; }`)
	cfg := ScoreConfig{Conditions: []*ScoringCondition{cond}}
	want := ComputeScore(placements, cfg)

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := ComputeScore(placements, cfg)
			if got.TotalScore != want.TotalScore || got.ConditionTotal != want.ConditionTotal {
				errs <- "concurrent call on an uncompiled condition diverged"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	if cond.Compiled() || cond.CompiledSource != "" {
		t.Error("shared condition must come out of concurrent scoring untouched")
	}
}

func TestComputeScoreConcurrentCalls(t *testing.T) {
	placements := []board.Placement{mixedCard(0, 0), fullCard(2, 0, "residential")}
	cond := condition("c", `function calculateScore(ctx) { return ctx.tiles().length; }`)
	if res := cond.Compile(); !res.OK {
		t.Fatalf("compile failed: %s", res.Error)
	}
	cfg := ScoreConfig{Conditions: []*ScoringCondition{cond}}
	want := ComputeScore(placements, cfg)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := ComputeScore(placements, cfg)
			if got.TotalScore != want.TotalScore || got.ConditionTotal != want.ConditionTotal {
				errs <- "concurrent call diverged"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestConditionCompileLifecycle(t *testing.T) {
	c := condition("c", `function calculateScore(ctx) { return 1; }`)
	if c.Compiled() {
		t.Error("condition must start uncompiled")
	}
	if res := c.Compile(); !res.OK {
		t.Fatalf("compile failed: %s", res.Error)
	}
	if !c.Compiled() || c.Program() == nil {
		t.Error("expected a retained artifact")
	}

	// Editing the source invalidates the artifact.
	c.Source = `function calculateScore(ctx) { return 2; }`
	if c.Compiled() {
		t.Error("stale artifact must not be trusted after a source edit")
	}
	if c.Program() != nil {
		t.Error("stale artifact must not be reachable")
	}
}

func TestConditionCompileFailClosed(t *testing.T) {
	c := condition("c", `function calculateScore(ctx) { return 1; }`)
	if res := c.Compile(); !res.OK {
		t.Fatal("initial compile should succeed")
	}
	c.Source = `function calculateScore(ctx) { return eval("1"); }`
	if res := c.Compile(); res.OK {
		t.Fatal("expected security rejection")
	}
	if c.Compiled() || c.Program() != nil {
		t.Error("failed recompile must drop the previous artifact")
	}
}
