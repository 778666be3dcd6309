package beads

import (
	"context"
	"sort"
	"strings"

	"github.com/beadify/beadify/internal/debug"
	"github.com/beadify/beadify/internal/replay"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// DeleteIssue soft-deletes one issue: an update event with status
// "deleted" goes to the log, the cache row vanishes, and every surviving
// issue that mentioned the id by text gets the [deleted:<id>] rewrite.
// The returned impact names the transitive dependents that just lost a
// blocker.
func (r *Repo) DeleteIssue(ctx context.Context, id string) (*types.DeleteImpact, error) {
	var impact *types.DeleteImpact
	err := r.withWriteLock(func() error {
		var err error
		impact, err = r.deleteOne(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return impact, nil
}

// deleteOne is DeleteIssue without the lock, shared with the cascade and
// batch paths which hold the lock across their whole run.
func (r *Repo) deleteOne(ctx context.Context, id string) (*types.DeleteImpact, error) {
	issue, err := r.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, &types.IssueNotFoundError{ID: id}
	}

	dependents, err := r.transitiveDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.Strings(dependents)

	status := types.StatusDeleted
	event, err := r.buildEvent(ctx, types.OpUpdate, id, &types.IssueUpdate{Status: &status})
	if err != nil {
		return nil, err
	}

	newOffset, err := r.log.Append(event)
	if err != nil {
		return nil, err
	}

	repaired := 0
	err = r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		repaired, err = replay.ApplyDelete(ctx, tx, id)
		if err != nil {
			return err
		}
		return setWatermarks(ctx, tx, event.EventID, newOffset)
	})
	if err != nil {
		return nil, err
	}

	debug.Logf("delete: %s, %d dependents, %d references repaired", id, len(dependents), repaired)
	return &types.DeleteImpact{
		ID:                id,
		Title:             issue.Title,
		Dependents:        dependents,
		ReferencesUpdated: repaired,
	}, nil
}

// DeleteCascade deletes the issue and everything that transitively
// depends on it, dependents first and the issue itself last, in the order
// cascadeOrder gives. Each deletion is its own log append and cache
// transaction; a failure is recorded and the rest of the batch continues.
func (r *Repo) DeleteCascade(ctx context.Context, id string) (*types.BatchDeleteResult, error) {
	var result *types.BatchDeleteResult
	err := r.withWriteLock(func() error {
		var err error
		result, err = r.cascadeUnlocked(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBatch deletes several issues, each a single or cascade delete,
// collecting outcomes instead of stopping on the first failure.
func (r *Repo) DeleteBatch(ctx context.Context, ids []string, cascade bool) (*types.BatchDeleteResult, error) {
	result := &types.BatchDeleteResult{}
	err := r.withWriteLock(func() error {
		for _, id := range ids {
			if cascade {
				sub, err := r.cascadeUnlocked(ctx, id)
				if err != nil {
					result.Failures = append(result.Failures, types.DeleteFailure{IssueID: id, Err: err})
					continue
				}
				result.Successes = append(result.Successes, sub.Successes...)
				result.Failures = append(result.Failures, sub.Failures...)
				continue
			}

			if _, err := r.deleteOne(ctx, id); err != nil {
				result.Failures = append(result.Failures, types.DeleteFailure{IssueID: id, Err: err})
				continue
			}
			result.Successes = append(result.Successes, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repo) cascadeUnlocked(ctx context.Context, id string) (*types.BatchDeleteResult, error) {
	issue, err := r.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, &types.IssueNotFoundError{ID: id}
	}

	order, err := r.cascadeOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &types.BatchDeleteResult{}
	for _, victim := range order {
		if _, err := r.deleteOne(ctx, victim); err != nil {
			result.Failures = append(result.Failures, types.DeleteFailure{IssueID: victim, Err: err})
			continue
		}
		result.Successes = append(result.Successes, victim)
	}
	return result, nil
}

// cascadeOrder returns the transitive dependents of id in reverse
// breadth-first discovery order (those found farthest from id first)
// followed by id itself. Every dependent comes before id, but the order is
// not a strict post-order: an issue reachable from id along paths of
// different lengths can come before one of its own dependents.
func (r *Repo) cascadeOrder(ctx context.Context, id string) ([]string, error) {
	dependents, err := r.transitiveDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(dependents)+1)
	for i := len(dependents) - 1; i >= 0; i-- {
		order = append(order, dependents[i])
	}
	return append(order, id), nil
}

// GetDeleteImpact is the read-only preview of a delete: what would be
// removed, who depends on it, and which issues reference it by text.
func (r *Repo) GetDeleteImpact(ctx context.Context, id string, cascade bool) (*types.DeletePreview, error) {
	issue, err := r.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, &types.IssueNotFoundError{ID: id}
	}

	dependents, err := r.transitiveDependents(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.Strings(dependents)

	preview := &types.DeletePreview{
		IssuesToDelete: []types.IssueRef{{ID: id, Title: issue.Title}},
		BlockedIssues:  dependents,
	}

	if cascade {
		for _, dependent := range dependents {
			dep, err := r.store.GetIssue(ctx, dependent)
			if err != nil {
				return nil, err
			}
			if dep != nil {
				preview.IssuesToDelete = append(preview.IssuesToDelete, types.IssueRef{ID: dep.ID, Title: dep.Title})
			}
		}
	}

	all, err := r.store.GetAllIssues(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range all {
		if other.ID == id {
			continue
		}
		if strings.Contains(other.Title, id) || strings.Contains(string(other.Data), id) {
			preview.TextReferences = append(preview.TextReferences, other.ID)
		}
	}

	return preview, nil
}
