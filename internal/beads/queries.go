package beads

import (
	"context"

	"github.com/beadify/beadify/internal/types"
)

// GetIssue returns the issue or IssueNotFound. Results are point-in-time
// snapshots of the cache; there is no subscription.
func (r *Repo) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := r.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, &types.IssueNotFoundError{ID: id}
	}
	return issue, nil
}

// GetAllIssues returns every live issue ordered by id.
func (r *Repo) GetAllIssues(ctx context.Context) ([]*types.Issue, error) {
	return r.store.GetAllIssues(ctx)
}

// GetDependencies returns the ids the issue depends on.
func (r *Repo) GetDependencies(ctx context.Context, id string) ([]string, error) {
	return r.store.GetDependencies(ctx, id)
}

// GetOpenDependencies returns the blockers that are not closed yet.
func (r *Repo) GetOpenDependencies(ctx context.Context, id string) ([]*types.Issue, error) {
	return r.store.GetOpenDependencies(ctx, id)
}

// GetDependents returns the ids that depend on the issue.
func (r *Repo) GetDependents(ctx context.Context, id string) ([]string, error) {
	return r.store.GetDependents(ctx, id)
}

// GetIssueLabels returns the labels attached to the issue.
func (r *Repo) GetIssueLabels(ctx context.Context, id string) ([]*types.Label, error) {
	return r.store.GetIssueLabels(ctx, id)
}

// GetAllLabels returns every label in the repo.
func (r *Repo) GetAllLabels(ctx context.Context) ([]*types.Label, error) {
	return r.store.GetAllLabels(ctx)
}

// GetIssuesByLabel returns the issues carrying the named label.
func (r *Repo) GetIssuesByLabel(ctx context.Context, name string) ([]*types.Issue, error) {
	return r.store.GetIssuesByLabel(ctx, name)
}
