package beads

import (
	"context"
	"fmt"

	"github.com/beadify/beadify/internal/eventlog"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// AddLabel attaches the named label to the issue, creating the label on
// first use. Re-labeling with the same name is a no-op. Labels and their
// associations live in the cache only: no event is logged for them, so
// replay neither carries them between repos nor restores associations.
func (r *Repo) AddLabel(ctx context.Context, issueID, name string) (*types.Label, error) {
	trimmed, err := types.ValidateLabelName(name)
	if err != nil {
		return nil, err
	}

	var label *types.Label
	err = r.withWriteLock(func() error {
		issue, err := r.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if issue == nil {
			return &types.IssueNotFoundError{ID: issueID}
		}

		// Fresh id for the case where the label does not exist yet;
		// EnsureLabel ignores it when the name is already taken.
		freshID, err := eventlog.NewEventID("")
		if err != nil {
			return err
		}

		return r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			label, err = tx.EnsureLabel(ctx, trimmed, freshID)
			if err != nil {
				return err
			}
			return tx.AddIssueLabel(ctx, issueID, label.ID)
		})
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

// RemoveLabel detaches the named label from the issue, failing when the
// label does not exist or was not attached.
func (r *Repo) RemoveLabel(ctx context.Context, issueID, name string) error {
	return r.withWriteLock(func() error {
		label, err := r.store.GetLabelByName(ctx, name)
		if err != nil {
			return err
		}
		if label == nil {
			return fmt.Errorf("label %q: %w", name, types.ErrLabelNotFound)
		}

		var found bool
		err = r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			found, err = tx.RemoveIssueLabel(ctx, issueID, label.ID)
			return err
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("label %q not attached to %s: %w", name, issueID, types.ErrLabelNotFound)
		}
		return nil
	})
}
