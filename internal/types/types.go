// Package types defines the domain model shared by the log, cache, and
// service layers: issues, events, labels, dependency edges, and the error
// taxonomy surfaced to callers.
package types

import (
	"encoding/json"
	"time"
)

// Status values recognized by the projection. The engine stores any string
// a log event carries; these constants cover the standard lifecycle.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusClosed     = "closed"
	StatusDeleted    = "deleted"
)

// Issue kinds. Like statuses these are advisory; the log is the authority.
const (
	KindBug     = "bug"
	KindFeature = "feature"
	KindTask    = "task"
	KindChore   = "chore"
	KindEpic    = "epic"
)

// Priority bounds (inclusive). 0 is most urgent.
const (
	PriorityMin = 0
	PriorityMax = 3
)

// OpKind is the tagged operation variant recorded on every log event.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpUpdate  OpKind = "update"
	OpComment OpKind = "comment"
	OpLink    OpKind = "link"
	OpUnlink  OpKind = "unlink"
	OpArchive OpKind = "archive"
)

// KnownOp reports whether op is one of the recognized operation kinds.
// Unknown kinds are a fatal replay error (the log line grammar is closed).
func KnownOp(op OpKind) bool {
	switch op {
	case OpCreate, OpUpdate, OpComment, OpLink, OpUnlink, OpArchive:
		return true
	}
	return false
}

// Event is one line of the append-only log. EventID is a 26-character ULID;
// ordering across collaborators is by lexicographic EventID compare, never
// by TS or file position.
type Event struct {
	EventID string          `json:"event_id"`
	TS      string          `json:"ts"`
	Op      OpKind          `json:"op"`
	ID      string          `json:"id"`
	Actor   string          `json:"actor"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Issue is the cache-level view of an issue: the fold of its create event
// and all subsequent updates in event-id order.
type Issue struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Kind               string          `json:"kind"`
	Priority           int             `json:"priority"`
	Status             string          `json:"status"`
	CreatedAt          string          `json:"created_at"`
	Description        string          `json:"description,omitempty"`
	Design             string          `json:"design,omitempty"`
	AcceptanceCriteria string          `json:"acceptance_criteria,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
}

// Documents decodes the data.documents map (document name -> blob hash).
// Returns an empty map when data is absent or carries no documents key.
func (i *Issue) Documents() (map[string]string, error) {
	if len(i.Data) == 0 {
		return map[string]string{}, nil
	}
	var data struct {
		Documents map[string]string `json:"documents"`
	}
	if err := json.Unmarshal(i.Data, &data); err != nil {
		return nil, &JSONError{Context: "issue data for " + i.ID, Err: err}
	}
	if data.Documents == nil {
		return map[string]string{}, nil
	}
	return data.Documents, nil
}

// IssueUpdate is a partial update intent. Nil fields are left untouched;
// the serialized form carries only the provided fields so update events
// stay minimal.
type IssueUpdate struct {
	Title              *string         `json:"title,omitempty"`
	Kind               *string         `json:"kind,omitempty"`
	Priority           *int            `json:"priority,omitempty"`
	Status             *string         `json:"status,omitempty"`
	Description        *string         `json:"description,omitempty"`
	Design             *string         `json:"design,omitempty"`
	AcceptanceCriteria *string         `json:"acceptance_criteria,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all. Empty
// updates are rejected before anything is logged.
func (u *IssueUpdate) IsEmpty() bool {
	return u.Title == nil &&
		u.Kind == nil &&
		u.Priority == nil &&
		u.Status == nil &&
		u.Description == nil &&
		u.Design == nil &&
		u.AcceptanceCriteria == nil &&
		u.Notes == nil &&
		u.Data == nil
}

// IsDelete reports whether the update soft-deletes the issue.
func (u *IssueUpdate) IsDelete() bool {
	return u.Status != nil && *u.Status == StatusDeleted
}

// CreatePayload is the data payload of a create event.
type CreatePayload struct {
	Title     string   `json:"title"`
	Kind      string   `json:"kind"`
	Priority  int      `json:"priority"`
	Status    string   `json:"status,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`

	Description        string          `json:"description,omitempty"`
	Design             string          `json:"design,omitempty"`
	AcceptanceCriteria string          `json:"acceptance_criteria,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          string          `json:"created_at,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
}

// Label is a named tag. ID is a ULID so labels minted on different
// machines stay unique; Name carries the uniqueness users see.
type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Dependency is a directed edge: IssueID depends on (is blocked by)
// DependsOnID. The full edge set forms a DAG over non-deleted issues.
type Dependency struct {
	IssueID     string `json:"issue_id"`
	DependsOnID string `json:"depends_on_id"`
}

// DeleteImpact describes what a single soft delete touched.
type DeleteImpact struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Dependents        []string `json:"dependents,omitempty"`
	ReferencesUpdated int      `json:"references_updated"`
}

// DeletePreview is the read-only impact analysis shown before deletion.
type DeletePreview struct {
	IssuesToDelete []IssueRef `json:"issues_to_delete"`
	BlockedIssues  []string   `json:"blocked_issues,omitempty"`
	TextReferences []string   `json:"text_references,omitempty"`
}

// IssueRef is the minimal id/title pair used in previews.
type IssueRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DeleteFailure records one failed element of a batch delete.
type DeleteFailure struct {
	IssueID string `json:"issue_id"`
	Err     error  `json:"-"`
}

// BatchDeleteResult collects per-element outcomes of a batch delete.
// A partially failed batch is not retried.
type BatchDeleteResult struct {
	Successes []string        `json:"successes"`
	Failures  []DeleteFailure `json:"failures"`
}

// NowUTC returns the current time formatted the way every persisted
// timestamp is: RFC3339 with millisecond precision, UTC "Z".
func NowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
