// Package storage defines the interface for the derived issue cache. The
// cache is a projection of the event log: safe to delete and rebuild, and
// never consulted as a source of truth.
package storage

import (
	"context"

	"github.com/beadify/beadify/internal/types"
)

// Transaction exposes the mutating subset of storage operations within a
// single database transaction. One public service call maps to exactly one
// transaction; if the callback returns an error the transaction is rolled
// back, otherwise it is committed.
type Transaction interface {
	// Issue projection
	UpsertIssue(ctx context.Context, issue *types.Issue) error
	ApplyUpdate(ctx context.Context, id string, update *types.IssueUpdate) error
	DeleteIssue(ctx context.Context, id string) (bool, error)
	RepairTextReferences(ctx context.Context, deletedID string) (int, error)
	ClearIssues(ctx context.Context) error

	// Dependency edges. AddDependency is idempotent and silently skips
	// edges whose endpoints are not (or no longer) in the cache; existence
	// checks belong to the service layer.
	AddDependency(ctx context.Context, issueID, dependsOnID string) error
	RemoveDependency(ctx context.Context, issueID, dependsOnID string) (bool, error)

	// Labels
	EnsureLabel(ctx context.Context, name, freshID string) (*types.Label, error)
	AddIssueLabel(ctx context.Context, issueID, labelID string) error
	RemoveIssueLabel(ctx context.Context, issueID, labelID string) (bool, error)

	// Read-your-writes lookups
	GetIssue(ctx context.Context, id string) (*types.Issue, error)

	// Repo metadata
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}

// Storage is the read side plus the transaction entry point. Lookups that
// miss return (nil, nil) or empty slices; mapping absence onto domain
// errors is the service layer's concern.
type Storage interface {
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	GetAllIssues(ctx context.Context) ([]*types.Issue, error)

	GetDependencies(ctx context.Context, issueID string) ([]string, error)
	GetOpenDependencies(ctx context.Context, issueID string) ([]*types.Issue, error)
	GetDependents(ctx context.Context, issueID string) ([]string, error)
	GetAllDependencies(ctx context.Context) (map[string][]string, error)

	GetLabelByName(ctx context.Context, name string) (*types.Label, error)
	GetIssueLabels(ctx context.Context, issueID string) ([]*types.Label, error)
	GetAllLabels(ctx context.Context) ([]*types.Label, error)
	GetIssuesByLabel(ctx context.Context, name string) ([]*types.Issue, error)

	GetMeta(ctx context.Context, key string) (string, error)

	// RunInTransaction executes fn within one write transaction using
	// BEGIN IMMEDIATE semantics, committing on nil and rolling back on
	// error or panic.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
	Path() string
}
