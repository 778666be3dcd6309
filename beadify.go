// Package beadify exposes the durable state engine of the beads issue
// tracker as a library: an append-only event log as the source of truth,
// a derived SQLite cache for queries, and a content-addressed blob store
// for attached documents.
//
// All human-facing rendering belongs to the embedding tool; this package
// returns structured results and typed errors only.
package beadify

import (
	"context"

	"github.com/beadify/beadify/internal/beads"
	"github.com/beadify/beadify/internal/types"
)

// Repo is an open beads repository: the path set plus handles to the
// log, cache, and blob store. Obtain one with Init, Open, or Find, and
// Close it when done.
type Repo = beads.Repo

// CreateRequest carries the inputs of Repo.CreateIssue.
type CreateRequest = beads.CreateRequest

// Watcher observes the event log and re-syncs on external changes.
type Watcher = beads.Watcher

// Core domain types.
type (
	Issue             = types.Issue
	IssueUpdate       = types.IssueUpdate
	Event             = types.Event
	OpKind            = types.OpKind
	Label             = types.Label
	Dependency        = types.Dependency
	DeleteImpact      = types.DeleteImpact
	DeletePreview     = types.DeletePreview
	BatchDeleteResult = types.BatchDeleteResult
)

// Operation kinds recorded on log events.
const (
	OpCreate  = types.OpCreate
	OpUpdate  = types.OpUpdate
	OpComment = types.OpComment
	OpLink    = types.OpLink
	OpUnlink  = types.OpUnlink
	OpArchive = types.OpArchive
)

// Status values recognized by the projection.
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusReview     = types.StatusReview
	StatusClosed     = types.StatusClosed
	StatusDeleted    = types.StatusDeleted
)

// Issue kinds.
const (
	KindBug     = types.KindBug
	KindFeature = types.KindFeature
	KindTask    = types.KindTask
	KindChore   = types.KindChore
	KindEpic    = types.KindEpic
)

// Sentinel errors for errors.Is checks. The concrete error values carry
// structured fields; see the types package.
var (
	ErrRepoNotFound      = types.ErrRepoNotFound
	ErrRepoAlreadyExists = types.ErrRepoAlreadyExists
	ErrIssueNotFound     = types.ErrIssueNotFound
	ErrBlobNotFound      = types.ErrBlobNotFound
	ErrInvalidHash       = types.ErrInvalidHash
	ErrCircularDep       = types.ErrCircularDep
	ErrSelfDep           = types.ErrSelfDep
	ErrEmptyUpdate       = types.ErrEmptyUpdate
	ErrInvalidLabelName  = types.ErrInvalidLabelName
	ErrRepoBusy          = types.ErrRepoBusy
)

// Init creates a new repository at path with the given issue id prefix.
func Init(ctx context.Context, path, prefix string) (*Repo, error) {
	return beads.Init(ctx, path, prefix)
}

// Open opens the repository rooted at root, catching the cache up with
// the log when needed.
func Open(ctx context.Context, root string) (*Repo, error) {
	return beads.Open(ctx, root)
}

// Find walks upward from startDir to the nearest repository and opens it.
func Find(ctx context.Context, startDir string) (*Repo, error) {
	return beads.Find(ctx, startDir)
}
