// Package graph implements the Dependency Resolver: a set of pure functions
// over a feature list, with no state of its own and no I/O. The catalog owns
// persistence; this package only answers questions about readiness and
// scheduling order for whatever snapshot it is given.
package graph

import (
	"errors"
	"sort"

	"github.com/sundog75/autocoder/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found while checking
// a feature set for consistency.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a feature depends on an ID not present in
// the snapshot it was checked against.
var ErrUnknownDependency = errors.New("dependency references unknown feature")

// AreDependenciesSatisfied reports whether every dependency of f is present
// in passingIDs. A feature with no dependencies is always satisfied.
func AreDependenciesSatisfied(f models.Feature, passingIDs map[int64]bool) bool {
	for _, dep := range f.Dependencies {
		if !passingIDs[dep] {
			return false
		}
	}
	return true
}

// PassingIDs builds the lookup set AreDependenciesSatisfied expects from a
// full feature snapshot.
func PassingIDs(all []models.Feature) map[int64]bool {
	passing := make(map[int64]bool, len(all))
	for _, f := range all {
		if f.Passes {
			passing[f.ID] = true
		}
	}
	return passing
}

// Ready filters all to the features whose dependencies are satisfied, that
// do not yet pass, and that are not already claimed by a coding agent.
func Ready(all []models.Feature) []models.Feature {
	passing := PassingIDs(all)
	var ready []models.Feature
	for _, f := range all {
		if f.Passes || f.InProgress {
			continue
		}
		if AreDependenciesSatisfied(f, passing) {
			ready = append(ready, f)
		}
	}
	return ready
}

// ComputeSchedulingScores assigns each feature a score equal to the number
// of other features that directly depend on it. A feature that unblocks
// more pending work sorts earlier; a feature nobody depends on scores zero.
func ComputeSchedulingScores(all []models.Feature) map[int64]int {
	scores := make(map[int64]int, len(all))
	for _, f := range all {
		scores[f.ID] = 0
	}
	for _, f := range all {
		for _, dep := range f.Dependencies {
			if _, known := scores[dep]; known {
				scores[dep]++
			}
		}
	}
	return scores
}

// SortByScore orders features by (-score, priority, id): highest score
// first, ties broken by lower priority value, then by lower id. The input
// slice is sorted in place and also returned for convenience.
func SortByScore(features []models.Feature, scores map[int64]int) []models.Feature {
	sort.SliceStable(features, func(i, j int) bool {
		a, b := features[i], features[j]
		sa, sb := scores[a.ID], scores[b.ID]
		if sa != sb {
			return sa > sb
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})
	return features
}

// RankedReady returns the ready subset of all, sorted in scheduling order.
// This is the external contract the scheduler loop calls each tick.
func RankedReady(all []models.Feature) []models.Feature {
	ready := Ready(all)
	scores := ComputeSchedulingScores(all)
	return SortByScore(ready, scores)
}

// Dependents returns the IDs of features that directly depend on id.
func Dependents(all []models.Feature, id int64) []int64 {
	var out []int64
	for _, f := range all {
		for _, dep := range f.Dependencies {
			if dep == id {
				out = append(out, f.ID)
				break
			}
		}
	}
	return out
}

// CheckConsistency verifies that every dependency listed in all resolves to
// a known feature and that the dependency graph contains no cycles. The
// session layer calls this once after the initializer seeds a project's
// catalog and logs (but does not abort on) a non-nil result: per spec.md §8
// scenario S4, a malformed graph is a non-fatal blocked-forever condition —
// the affected features simply never appear in Ready, not a reason to
// crash the session.
func CheckConsistency(all []models.Feature) error {
	known := make(map[int64]models.Feature, len(all))
	for _, f := range all {
		known[f.ID] = f
	}
	for _, f := range all {
		for _, dep := range f.Dependencies {
			if _, ok := known[dep]; !ok {
				return ErrUnknownDependency
			}
		}
	}
	if hasCycle(known) {
		return ErrCycleDetected
	}
	return nil
}

// hasCycle runs a DFS with three-coloring over the dependency edges.
func hasCycle(known map[int64]models.Feature) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[int64]int, len(known))
	for id := range known {
		colors[id] = white
	}

	var visit func(id int64) bool
	visit = func(id int64) bool {
		colors[id] = gray
		for _, dep := range known[id].Dependencies {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for id := range known {
		if colors[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}
