package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/beadify/beadify/internal/types"
)

const issueColumns = `id, title, kind, priority, status, created_at,
	description, design, acceptance_criteria, notes, data`

// UpsertIssue inserts the issue row or overwrites every projected field.
// Upsert (rather than strict insert) keeps full replay idempotent when a
// merged log carries duplicate create lines.
func (t *sqliteTx) UpsertIssue(ctx context.Context, issue *types.Issue) error {
	var data interface{}
	if len(issue.Data) > 0 {
		data = string(issue.Data)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO issues (id, title, kind, priority, status, created_at,
			description, design, acceptance_criteria, notes, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			kind = excluded.kind,
			priority = excluded.priority,
			status = excluded.status,
			created_at = excluded.created_at,
			description = excluded.description,
			design = excluded.design,
			acceptance_criteria = excluded.acceptance_criteria,
			notes = excluded.notes,
			data = excluded.data
	`,
		issue.ID, issue.Title, issue.Kind, issue.Priority, issue.Status,
		issue.CreatedAt, issue.Description, issue.Design,
		issue.AcceptanceCriteria, issue.Notes, data,
	)
	if err != nil {
		return &types.DatabaseError{Operation: "upsert issue " + issue.ID, Err: err}
	}
	return nil
}

// ApplyUpdate applies the present fields of a partial update to the issue
// row. An update targeting a row that is not in the cache (already
// deleted, or created-deleted) affects nothing, which is correct: the log
// keeps the history, the cache only shows live issues.
func (t *sqliteTx) ApplyUpdate(ctx context.Context, id string, update *types.IssueUpdate) error {
	set := func(column string, value interface{}) error {
		// #nosec G202 -- column names come from the fixed list below
		_, err := t.tx.ExecContext(ctx, "UPDATE issues SET "+column+" = ? WHERE id = ?", value, id)
		if err != nil {
			return &types.DatabaseError{Operation: "update issue " + id, Err: err}
		}
		return nil
	}

	if update.Title != nil {
		if err := set("title", *update.Title); err != nil {
			return err
		}
	}
	if update.Kind != nil {
		if err := set("kind", *update.Kind); err != nil {
			return err
		}
	}
	if update.Priority != nil {
		if err := set("priority", *update.Priority); err != nil {
			return err
		}
	}
	if update.Status != nil {
		if err := set("status", *update.Status); err != nil {
			return err
		}
	}
	if update.Description != nil {
		if err := set("description", *update.Description); err != nil {
			return err
		}
	}
	if update.Design != nil {
		if err := set("design", *update.Design); err != nil {
			return err
		}
	}
	if update.AcceptanceCriteria != nil {
		if err := set("acceptance_criteria", *update.AcceptanceCriteria); err != nil {
			return err
		}
	}
	if update.Notes != nil {
		if err := set("notes", *update.Notes); err != nil {
			return err
		}
	}
	if update.Data != nil {
		if err := set("data", string(update.Data)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteIssue removes the issue row; dependency edges and label
// associations cascade. Returns whether a row was actually removed.
func (t *sqliteTx) DeleteIssue(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return false, &types.DatabaseError{Operation: "delete issue " + id, Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, &types.DatabaseError{Operation: "delete issue " + id, Err: err}
	}
	return rows > 0, nil
}

// RepairTextReferences rewrites literal occurrences of a deleted issue id
// in every remaining issue's title and serialized data to
// "[deleted:<id>]", so cache-level disappearance never leaves a dangling
// human-readable reference. Returns the number of issues touched.
func (t *sqliteTx) RepairTextReferences(ctx context.Context, deletedID string) (int, error) {
	replacement := "[deleted:" + deletedID + "]"
	res, err := t.tx.ExecContext(ctx, `
		UPDATE issues
		SET title = REPLACE(title, ?, ?),
		    data = CASE WHEN data IS NULL THEN NULL ELSE REPLACE(data, ?, ?) END
		WHERE id != ?
		  AND (instr(title, ?) > 0 OR (data IS NOT NULL AND instr(data, ?) > 0))
	`,
		deletedID, replacement,
		deletedID, replacement,
		deletedID,
		deletedID, deletedID,
	)
	if err != nil {
		return 0, &types.DatabaseError{Operation: "repair references to " + deletedID, Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, &types.DatabaseError{Operation: "repair references to " + deletedID, Err: err}
	}
	return int(rows), nil
}

// ClearIssues truncates the projection. Dependency and label-association
// rows cascade; label definitions and _meta are preserved.
func (t *sqliteTx) ClearIssues(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM issues`); err != nil {
		return &types.DatabaseError{Operation: "clear issues", Err: err}
	}
	return nil
}

// GetIssue returns the issue within the transaction, or nil when absent.
func (t *sqliteTx) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	return scanIssue(row)
}

// GetIssue returns the issue, or nil when it is not in the cache.
func (s *SQLiteStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	return scanIssue(row)
}

// GetAllIssues returns every cached issue ordered by id.
func (s *SQLiteStorage) GetAllIssues(ctx context.Context) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY id ASC`)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "list issues", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssueRow(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.DatabaseError{Operation: "list issues", Err: err}
	}
	return issues, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row *sql.Row) (*types.Issue, error) {
	issue, err := scanIssueFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return issue, err
}

func scanIssueRow(rows *sql.Rows) (*types.Issue, error) {
	return scanIssueFrom(rows)
}

func scanIssueFrom(sc rowScanner) (*types.Issue, error) {
	var issue types.Issue
	var data sql.NullString

	err := sc.Scan(
		&issue.ID, &issue.Title, &issue.Kind, &issue.Priority, &issue.Status,
		&issue.CreatedAt, &issue.Description, &issue.Design,
		&issue.AcceptanceCriteria, &issue.Notes, &data,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, &types.DatabaseError{Operation: "scan issue", Err: err}
	}

	if data.Valid && data.String != "" {
		issue.Data = json.RawMessage(data.String)
	}
	return &issue, nil
}
