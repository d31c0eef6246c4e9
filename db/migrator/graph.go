package migrator

import (
	"fmt"
	"slices"
	"sort"
)

// resolveOrder returns the full migration set in application order: every
// migration appears strictly after all of its prerequisites, and migrations
// with no ordering constraint between them are ordered by identifier
// ascending, which makes the order deterministic across runs.
//
// It fails with ParseError on a prerequisite naming an unknown migration, and
// with CycleError if the prerequisite graph contains a cycle.
func resolveOrder(all []*Migration) ([]*Migration, error) {
	byID := make(map[string]*Migration, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}
	for _, m := range all {
		for _, dep := range m.Depends {
			if _, ok := byID[dep]; !ok {
				return nil, ParseError{
					Unit:   m.ID,
					Reason: fmt.Sprintf("depends on unknown migration '%s'", dep),
				}
			}
		}
	}

	if cycle := findCycle(all, byID); cycle != nil {
		return nil, CycleError{Cycle: cycle}
	}

	// Kahn's algorithm, always picking the lexicographically smallest
	// migration whose prerequisites are all ordered.
	blockers := make(map[string]int, len(all))
	dependents := make(map[string][]string, len(all))
	ready := make([]string, 0, len(all))
	for _, m := range all {
		blockers[m.ID] = len(m.Depends)
		for _, dep := range m.Depends {
			dependents[dep] = append(dependents[dep], m.ID)
		}
		if len(m.Depends) == 0 {
			ready = append(ready, m.ID)
		}
	}
	sort.Strings(ready)

	order := make([]*Migration, 0, len(all))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		for _, dependent := range dependents[id] {
			blockers[dependent]--
			if blockers[dependent] == 0 {
				idx, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, idx, dependent)
			}
		}
	}

	return order, nil
}

// findCycle runs a depth-first traversal with three-color marking and returns
// the first dependency cycle found, or nil if the graph is acyclic.
func findCycle(all []*Migration, byID map[string]*Migration) []string {
	const (
		white = iota // unvisited
		gray         // on the current path
		black        // fully explored
	)
	color := make(map[string]int, len(all))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)

		deps := slices.Clone(byID[id].Depends)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case gray:
				// Back edge; slice the cycle out of the current path.
				start := slices.Index(path, dep)
				return append(slices.Clone(path[start:]), dep)
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(all))
	for _, m := range all {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// toApply returns the unapplied subset of all migrations in application order.
func toApply(all []*Migration, applied map[string]AppliedRecord) ([]*Migration, error) {
	order, err := resolveOrder(all)
	if err != nil {
		return nil, err
	}

	pending := make([]*Migration, 0, len(order))
	for _, m := range order {
		if _, ok := applied[m.ID]; !ok {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// toRollback returns the applied subset in reverse application order,
// truncated to the most recent limit migrations. A negative limit selects the
// entire applied subset.
func toRollback(all []*Migration, applied map[string]AppliedRecord, limit int) ([]*Migration, error) {
	order, err := resolveOrder(all)
	if err != nil {
		return nil, err
	}

	selected := make([]*Migration, 0, len(order))
	for _, m := range order {
		if _, ok := applied[m.ID]; ok {
			selected = append(selected, m)
		}
	}
	slices.Reverse(selected)

	if limit >= 0 && limit < len(selected) {
		selected = selected[:limit]
	}

	return selected, nil
}
