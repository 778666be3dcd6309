package beads

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/beadify/beadify/internal/config"
	"github.com/beadify/beadify/internal/debug"
	"github.com/beadify/beadify/internal/replay"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// CreateRequest carries the inputs of CreateIssue. DependsOn issues must
// already exist; Data is an optional structured document stored verbatim.
type CreateRequest struct {
	Title     string
	Kind      string
	Priority  int
	DependsOn []string
	Data      json.RawMessage

	Description        string
	Design             string
	AcceptanceCriteria string
	Notes              string
}

// CreateIssue allocates the next serial id, appends the create event, and
// projects it onto the cache in one transaction. Returns the event so
// callers can report the id and actor.
func (r *Repo) CreateIssue(ctx context.Context, req CreateRequest) (*types.Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, &types.MissingFieldError{Field: "title"}
	}
	if req.Priority < types.PriorityMin || req.Priority > types.PriorityMax {
		return nil, &types.InvalidEnumValueError{
			Field: "priority",
			Value: strconv.Itoa(req.Priority),
			Valid: []string{"0", "1", "2", "3"},
		}
	}

	var event *types.Event
	err := r.withWriteLock(func() error {
		prefix, err := r.idPrefix(ctx)
		if err != nil {
			return err
		}

		serial := 0
		if v, err := r.store.GetMeta(ctx, replay.MetaLastIssueSerial); err != nil {
			return err
		} else if v != "" {
			serial, err = strconv.Atoi(v)
			if err != nil {
				return &types.MissingConfigError{Key: replay.MetaLastIssueSerial}
			}
		}
		serial++
		issueID := fmt.Sprintf("%s-%03d", prefix, serial)

		for _, dependsOn := range req.DependsOn {
			existing, err := r.store.GetIssue(ctx, dependsOn)
			if err != nil {
				return err
			}
			if existing == nil {
				return &types.IssueNotFoundError{ID: dependsOn}
			}
		}

		payload := types.CreatePayload{
			Title:              req.Title,
			Kind:               req.Kind,
			Priority:           req.Priority,
			Status:             types.StatusOpen,
			DependsOn:          req.DependsOn,
			Description:        req.Description,
			Design:             req.Design,
			AcceptanceCriteria: req.AcceptanceCriteria,
			Notes:              req.Notes,
			CreatedAt:          types.NowUTC(),
			Data:               req.Data,
		}

		event, err = r.buildEvent(ctx, types.OpCreate, issueID, payload)
		if err != nil {
			return err
		}

		newOffset, err := r.log.Append(event)
		if err != nil {
			return err
		}

		return r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := replay.ApplyEvent(ctx, tx, event); err != nil {
				return err
			}
			if err := tx.SetMeta(ctx, replay.MetaLastIssueSerial, strconv.Itoa(serial)); err != nil {
				return err
			}
			return setWatermarks(ctx, tx, event.EventID, newOffset)
		})
	})
	if err != nil {
		return nil, err
	}

	debug.Logf("create: %s (%s)", event.ID, event.EventID)
	return event, nil
}

// UpdateIssue appends a partial update event and applies it. An update
// that sets status to deleted flows through the same projection as
// replay: row removal plus text-reference repair.
func (r *Repo) UpdateIssue(ctx context.Context, id string, update *types.IssueUpdate) (*types.Event, error) {
	if update == nil || update.IsEmpty() {
		return nil, types.ErrEmptyUpdate
	}

	var event *types.Event
	err := r.withWriteLock(func() error {
		existing, err := r.store.GetIssue(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return &types.IssueNotFoundError{ID: id}
		}

		event, err = r.buildEvent(ctx, types.OpUpdate, id, update)
		if err != nil {
			return err
		}

		newOffset, err := r.log.Append(event)
		if err != nil {
			return err
		}

		return r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := replay.ApplyEvent(ctx, tx, event); err != nil {
				return err
			}
			return setWatermarks(ctx, tx, event.EventID, newOffset)
		})
	})
	if err != nil {
		return nil, err
	}

	debug.Logf("update: %s (%s)", id, event.EventID)
	return event, nil
}

// buildEvent builds the event record for an operation: fresh id, UTC
// millisecond timestamp, actor from config/environment, serialized data.
func (r *Repo) buildEvent(ctx context.Context, op types.OpKind, issueID string, data interface{}) (*types.Event, error) {
	eventID, err := r.nextEventID(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, &types.JSONError{Context: "payload of " + string(op) + " event", Err: err}
	}

	return &types.Event{
		EventID: eventID,
		TS:      types.NowUTC(),
		Op:      op,
		ID:      issueID,
		Actor:   config.Actor(),
		Data:    encoded,
	}, nil
}

func setWatermarks(ctx context.Context, tx storage.Transaction, eventID string, offset int64) error {
	if err := tx.SetMeta(ctx, replay.MetaLastEventID, eventID); err != nil {
		return err
	}
	return tx.SetMeta(ctx, replay.MetaLastOffset, strconv.FormatInt(offset, 10))
}
