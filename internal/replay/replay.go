// Package replay reduces the event log onto the derived cache. The
// projection is deterministic: for any log, replaying its events in
// event-id order produces the same cache state regardless of the order
// the lines sit in the file.
package replay

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/beadify/beadify/internal/debug"
	"github.com/beadify/beadify/internal/eventlog"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/types"
)

// Meta keys maintained by the replay engine.
const (
	MetaIDPrefix        = "id_prefix"
	MetaLastIssueSerial = "last_issue_serial"
	MetaLastEventID     = "last_event_id"
	MetaLastOffset      = "last_processed_offset"
)

// Engine binds one log to one cache.
type Engine struct {
	log   *eventlog.Log
	store storage.Storage
}

// New returns a replay engine over the given log and cache.
func New(log *eventlog.Log, store storage.Storage) *Engine {
	return &Engine{log: log, store: store}
}

// Full rebuilds the projection from byte 0: truncate the issues table
// (edges and label associations cascade), read and sort the whole log,
// apply every event in one transaction, then record the new watermarks.
// Returns the number of events applied.
func (e *Engine) Full(ctx context.Context) (int, error) {
	events, endOffset, err := e.log.ReadAll()
	if err != nil {
		return 0, err
	}
	eventlog.Sort(events)

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.ClearIssues(ctx); err != nil {
			return err
		}
		return applyBatch(ctx, tx, events, endOffset)
	})
	if err != nil {
		return 0, err
	}

	debug.Logf("replay: full, %d events, offset %d", len(events), endOffset)
	return len(events), nil
}

// Incremental applies only the log suffix past last_processed_offset.
// When any incoming event id is not strictly greater than the stored
// last_event_id the suffix contains merged-in history, and the engine
// falls back to a full replay (which is idempotent, so the fallback is
// always safe).
func (e *Engine) Incremental(ctx context.Context) (int, error) {
	startOffset := int64(0)
	if v, err := e.store.GetMeta(ctx, MetaLastOffset); err != nil {
		return 0, err
	} else if v != "" {
		parsed, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return 0, &types.MissingConfigError{Key: MetaLastOffset}
		}
		startOffset = parsed
	}

	events, endOffset, err := e.log.ReadFrom(startOffset)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	eventlog.Sort(events)

	lastEventID, err := e.store.GetMeta(ctx, MetaLastEventID)
	if err != nil {
		return 0, err
	}
	if lastEventID != "" && events[0].EventID <= lastEventID {
		debug.Logf("replay: out-of-order arrival (%s <= %s), falling back to full", events[0].EventID, lastEventID)
		return e.Full(ctx)
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return applyBatch(ctx, tx, events, endOffset)
	})
	if err != nil {
		return 0, err
	}

	debug.Logf("replay: incremental, %d events, offset %d -> %d", len(events), startOffset, endOffset)
	return len(events), nil
}

// applyBatch projects a sorted batch of events and records the
// watermarks: last_event_id, last_processed_offset, and a bumped
// last_issue_serial when merged-in creates carry higher serials than the
// local counter (so the next create cannot collide).
func applyBatch(ctx context.Context, tx storage.Transaction, events []*types.Event, endOffset int64) error {
	for _, event := range events {
		if err := ApplyEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if len(events) > 0 {
		if err := tx.SetMeta(ctx, MetaLastEventID, events[len(events)-1].EventID); err != nil {
			return err
		}
	}
	if err := tx.SetMeta(ctx, MetaLastOffset, strconv.FormatInt(endOffset, 10)); err != nil {
		return err
	}

	return bumpSerial(ctx, tx, events)
}

// ApplyEvent projects one event onto the cache. The service layer uses
// the same function inside its write transactions, which is what keeps
// invariant two honest: a live mutation and a replay of its event are the
// same code path.
func ApplyEvent(ctx context.Context, tx storage.Transaction, event *types.Event) error {
	switch event.Op {
	case types.OpCreate:
		return applyCreate(ctx, tx, event)
	case types.OpUpdate:
		return applyUpdate(ctx, tx, event)
	case types.OpComment, types.OpLink, types.OpUnlink, types.OpArchive:
		// Reserved op kinds: preserved in the log, no projection yet.
		return nil
	default:
		return &types.JSONError{Context: "event " + event.EventID, Err: errUnknownOp(event.Op)}
	}
}

func applyCreate(ctx context.Context, tx storage.Transaction, event *types.Event) error {
	var payload types.CreatePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return &types.JSONError{Context: "create payload of " + event.EventID, Err: err}
	}

	status := payload.Status
	if status == "" {
		status = types.StatusOpen
	}
	// An issue born deleted never enters the cache; the event itself
	// stays in the log for history.
	if status == types.StatusDeleted {
		return nil
	}

	createdAt := payload.CreatedAt
	if createdAt == "" {
		createdAt = event.TS
	}

	issue := &types.Issue{
		ID:                 event.ID,
		Title:              payload.Title,
		Kind:               payload.Kind,
		Priority:           payload.Priority,
		Status:             status,
		CreatedAt:          createdAt,
		Description:        payload.Description,
		Design:             payload.Design,
		AcceptanceCriteria: payload.AcceptanceCriteria,
		Notes:              payload.Notes,
		Data:               payload.Data,
	}
	if err := tx.UpsertIssue(ctx, issue); err != nil {
		return err
	}

	for _, dependsOn := range payload.DependsOn {
		if err := tx.AddDependency(ctx, event.ID, dependsOn); err != nil {
			return err
		}
	}
	return nil
}

func applyUpdate(ctx context.Context, tx storage.Transaction, event *types.Event) error {
	var update types.IssueUpdate
	if err := json.Unmarshal(event.Data, &update); err != nil {
		return &types.JSONError{Context: "update payload of " + event.EventID, Err: err}
	}

	if update.IsDelete() {
		_, err := ApplyDelete(ctx, tx, event.ID)
		return err
	}

	return tx.ApplyUpdate(ctx, event.ID, &update)
}

// ApplyDelete is the projection of a soft delete: remove the issue row
// (edges and label associations cascade) and repair text references in
// the surviving issues. Returns how many issues were rewritten. Repair
// runs only when the row actually vanished; a repeated delete event must
// not double-wrap references already rewritten.
func ApplyDelete(ctx context.Context, tx storage.Transaction, id string) (int, error) {
	deleted, err := tx.DeleteIssue(ctx, id)
	if err != nil {
		return 0, err
	}
	if !deleted {
		return 0, nil
	}
	return tx.RepairTextReferences(ctx, id)
}

func bumpSerial(ctx context.Context, tx storage.Transaction, events []*types.Event) error {
	prefix, err := tx.GetMeta(ctx, MetaIDPrefix)
	if err != nil || prefix == "" {
		return err
	}

	maxSeen := 0
	for _, event := range events {
		if event.Op != types.OpCreate {
			continue
		}
		if serial, ok := parseSerial(event.ID, prefix); ok && serial > maxSeen {
			maxSeen = serial
		}
	}
	if maxSeen == 0 {
		return nil
	}

	current := 0
	if v, err := tx.GetMeta(ctx, MetaLastIssueSerial); err != nil {
		return err
	} else if v != "" {
		current, _ = strconv.Atoi(v)
	}

	if maxSeen > current {
		return tx.SetMeta(ctx, MetaLastIssueSerial, strconv.Itoa(maxSeen))
	}
	return nil
}

func parseSerial(id, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok {
		return 0, false
	}
	serial, err := strconv.Atoi(rest)
	if err != nil || serial <= 0 {
		return 0, false
	}
	return serial, true
}

type errUnknownOp types.OpKind

func (e errUnknownOp) Error() string {
	return "unknown op " + string(e)
}
