package graph

import (
	"reflect"
	"testing"

	"github.com/sundog75/autocoder/pkg/models"
)

func feat(id int64, priority int, passes, inProgress bool, deps ...int64) models.Feature {
	return models.Feature{
		ID:           id,
		Priority:     priority,
		Dependencies: deps,
		Passes:       passes,
		InProgress:   inProgress,
	}
}

func TestAreDependenciesSatisfied(t *testing.T) {
	f := feat(3, 0, false, false, 1, 2)

	if AreDependenciesSatisfied(f, map[int64]bool{1: true}) {
		t.Error("expected unsatisfied with only one of two deps passing")
	}
	if !AreDependenciesSatisfied(f, map[int64]bool{1: true, 2: true}) {
		t.Error("expected satisfied with both deps passing")
	}

	noDeps := feat(4, 0, false, false)
	if !AreDependenciesSatisfied(noDeps, nil) {
		t.Error("feature with no dependencies should always be satisfied")
	}
}

func TestReadySkipsPassingInProgressAndBlocked(t *testing.T) {
	all := []models.Feature{
		feat(1, 0, true, false),        // passes, excluded
		feat(2, 0, false, true, 1),     // in progress, excluded
		feat(3, 0, false, false, 1),    // ready: dep 1 passes
		feat(4, 0, false, false, 2),    // blocked: dep 2 not passing
		feat(5, 0, false, false),       // ready: no deps
	}

	ready := Ready(all)
	var ids []int64
	for _, f := range ready {
		ids = append(ids, f.ID)
	}
	sortInts(ids)

	want := []int64{3, 5}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Ready() ids = %v, want %v", ids, want)
	}
}

func sortInts(ids []int64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func TestComputeSchedulingScoresCountsDependents(t *testing.T) {
	all := []models.Feature{
		feat(1, 0, false, false),
		feat(2, 0, false, false, 1),
		feat(3, 0, false, false, 1),
		feat(4, 0, false, false, 2),
	}

	scores := ComputeSchedulingScores(all)
	if scores[1] != 2 {
		t.Errorf("feature 1 score = %d, want 2", scores[1])
	}
	if scores[2] != 1 {
		t.Errorf("feature 2 score = %d, want 1", scores[2])
	}
	if scores[3] != 0 {
		t.Errorf("feature 3 score = %d, want 0", scores[3])
	}
	if scores[4] != 0 {
		t.Errorf("feature 4 score = %d, want 0", scores[4])
	}
}

func TestSortByScoreOrdering(t *testing.T) {
	features := []models.Feature{
		feat(5, 1, false, false),
		feat(1, 2, false, false),
		feat(2, 1, false, false),
	}
	scores := map[int64]int{5: 0, 1: 1, 2: 1}

	SortByScore(features, scores)

	var ids []int64
	for _, f := range features {
		ids = append(ids, f.ID)
	}
	want := []int64{2, 1, 5} // score 1 before score 0; within score 1, priority 1 before priority 2
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("SortByScore order = %v, want %v", ids, want)
	}
}

func TestCheckConsistencyDetectsUnknownDependency(t *testing.T) {
	all := []models.Feature{feat(1, 0, false, false, 99)}
	if err := CheckConsistency(all); err != ErrUnknownDependency {
		t.Errorf("CheckConsistency() = %v, want ErrUnknownDependency", err)
	}
}

func TestCheckConsistencyDetectsCycle(t *testing.T) {
	all := []models.Feature{
		feat(1, 0, false, false, 2),
		feat(2, 0, false, false, 1),
	}
	if err := CheckConsistency(all); err != ErrCycleDetected {
		t.Errorf("CheckConsistency() = %v, want ErrCycleDetected", err)
	}
}

func TestCheckConsistencyPassesValidSet(t *testing.T) {
	all := []models.Feature{
		feat(1, 0, false, false),
		feat(2, 0, false, false, 1),
	}
	if err := CheckConsistency(all); err != nil {
		t.Errorf("CheckConsistency() = %v, want nil", err)
	}
}

func TestDependents(t *testing.T) {
	all := []models.Feature{
		feat(1, 0, false, false),
		feat(2, 0, false, false, 1),
		feat(3, 0, false, false, 1),
	}
	got := Dependents(all, 1)
	sortInts(got)
	want := []int64{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents(1) = %v, want %v", got, want)
	}
}
