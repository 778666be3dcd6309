package beads

import (
	"context"
	"fmt"

	"github.com/beadify/beadify/internal/debug"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// AddDependency records that from depends on (is blocked by) to. The edge
// is rejected when it would close a cycle; the error carries the cycle
// path starting and ending at from. Dependency edges live in the cache
// only; they are not logged as their own event kind.
func (r *Repo) AddDependency(ctx context.Context, from, to string) error {
	if from == to {
		return &types.SelfDependencyError{ID: from}
	}

	return r.withWriteLock(func() error {
		for _, id := range []string{from, to} {
			issue, err := r.store.GetIssue(ctx, id)
			if err != nil {
				return err
			}
			if issue == nil {
				return &types.IssueNotFoundError{ID: id}
			}
		}

		adjacency, err := r.store.GetAllDependencies(ctx)
		if err != nil {
			return err
		}
		if path := findPath(adjacency, to, from); path != nil {
			cycle := append([]string{from}, path...)
			return &types.CircularDependencyError{Cycle: cycle}
		}

		err = r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			return tx.AddDependency(ctx, from, to)
		})
		if err != nil {
			return err
		}
		debug.Logf("dep: %s -> %s", from, to)
		return nil
	})
}

// RemoveDependency deletes the edge from -> to, failing when it does not
// exist.
func (r *Repo) RemoveDependency(ctx context.Context, from, to string) error {
	return r.withWriteLock(func() error {
		var found bool
		err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			var err error
			found, err = tx.RemoveDependency(ctx, from, to)
			return err
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("dependency %s -> %s: %w", from, to, types.ErrDepNotFound)
		}
		return nil
	})
}

// findPath returns a path from start to goal in the adjacency map, or nil
// when goal is unreachable. Explicit work list with a visited set: the
// graph is a DAG by invariant, but a merge import can transiently break
// that, and traversal must not recurse forever when it does.
func findPath(adjacency map[string][]string, start, goal string) []string {
	type node struct {
		id   string
		prev *node
	}

	visited := map[string]bool{start: true}
	work := []*node{{id: start}}

	for len(work) > 0 {
		current := work[0]
		work = work[1:]

		if current.id == goal {
			var path []string
			for n := current; n != nil; n = n.prev {
				path = append([]string{n.id}, path...)
			}
			return path
		}

		for _, next := range adjacency[current.id] {
			if !visited[next] {
				visited[next] = true
				work = append(work, &node{id: next, prev: current})
			}
		}
	}
	return nil
}

// transitiveDependents walks the reverse dependency graph from id and
// returns every issue that directly or transitively depends on it,
// deduplicated, in breadth-first discovery order.
func (r *Repo) transitiveDependents(ctx context.Context, id string) ([]string, error) {
	adjacency, err := r.store.GetAllDependencies(ctx)
	if err != nil {
		return nil, err
	}

	reverse := make(map[string][]string)
	for from, tos := range adjacency {
		for _, to := range tos {
			reverse[to] = append(reverse[to], from)
		}
	}

	visited := map[string]bool{id: true}
	var result []string
	work := []string{id}
	for len(work) > 0 {
		current := work[0]
		work = work[1:]
		for _, dependent := range reverse[current] {
			if !visited[dependent] {
				visited[dependent] = true
				result = append(result, dependent)
				work = append(work, dependent)
			}
		}
	}
	return result, nil
}
