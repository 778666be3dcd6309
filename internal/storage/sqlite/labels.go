package sqlite

import (
	"context"
	"database/sql"

	"github.com/beadify/beadify/internal/types"
)

// EnsureLabel returns the label named name, creating it with freshID when
// no label of that name exists yet. Name uniqueness is case-sensitive and
// enforced by the schema.
func (t *sqliteTx) EnsureLabel(ctx context.Context, name, freshID string) (*types.Label, error) {
	label, err := scanLabel(t.tx.QueryRowContext(ctx, `
		SELECT id, name, color, description FROM labels WHERE name = ?
	`, name))
	if err != nil {
		return nil, err
	}
	if label != nil {
		return label, nil
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO labels (id, name) VALUES (?, ?)
	`, freshID, name); err != nil {
		return nil, &types.DatabaseError{Operation: "create label " + name, Err: err}
	}
	return &types.Label{ID: freshID, Name: name}, nil
}

// AddIssueLabel associates the issue with the label. Idempotent.
func (t *sqliteTx) AddIssueLabel(ctx context.Context, issueID, labelID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO issue_labels (issue_id, label_id) VALUES (?, ?)
	`, issueID, labelID)
	if err != nil {
		return &types.DatabaseError{Operation: "label issue " + issueID, Err: err}
	}
	return nil
}

// RemoveIssueLabel deletes the association, reporting whether it existed.
func (t *sqliteTx) RemoveIssueLabel(ctx context.Context, issueID, labelID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM issue_labels WHERE issue_id = ? AND label_id = ?
	`, issueID, labelID)
	if err != nil {
		return false, &types.DatabaseError{Operation: "unlabel issue " + issueID, Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, &types.DatabaseError{Operation: "unlabel issue " + issueID, Err: err}
	}
	return rows > 0, nil
}

// GetLabelByName returns the label, or nil when absent.
func (s *SQLiteStorage) GetLabelByName(ctx context.Context, name string) (*types.Label, error) {
	return scanLabel(s.db.QueryRowContext(ctx, `
		SELECT id, name, color, description FROM labels WHERE name = ?
	`, name))
}

// GetIssueLabels returns the labels attached to an issue, sorted by name.
func (s *SQLiteStorage) GetIssueLabels(ctx context.Context, issueID string) ([]*types.Label, error) {
	return s.labelQuery(ctx, `
		SELECT l.id, l.name, l.color, l.description
		FROM labels l
		JOIN issue_labels il ON il.label_id = l.id
		WHERE il.issue_id = ?
		ORDER BY l.name
	`, issueID)
}

// GetAllLabels returns every label in the repo, sorted by name.
func (s *SQLiteStorage) GetAllLabels(ctx context.Context) ([]*types.Label, error) {
	return s.labelQuery(ctx, `
		SELECT id, name, color, description FROM labels ORDER BY name
	`)
}

// GetIssuesByLabel returns the issues carrying the named label.
func (s *SQLiteStorage) GetIssuesByLabel(ctx context.Context, name string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+`
		FROM issues
		JOIN issue_labels il ON il.issue_id = issues.id
		JOIN labels l ON l.id = il.label_id
		WHERE l.name = ?
		ORDER BY issues.id
	`, name)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "list issues by label " + name, Err: err}
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
		return nil, &types.DatabaseError{Operation: "list issues by label " + name, Err: err}
	}
	return issues, nil
}

func (s *SQLiteStorage) labelQuery(ctx context.Context, query string, args ...interface{}) ([]*types.Label, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "list labels", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var labels []*types.Label
	for rows.Next() {
		var label types.Label
		if err := rows.Scan(&label.ID, &label.Name, &label.Color, &label.Description); err != nil {
			return nil, &types.DatabaseError{Operation: "scan label", Err: err}
		}
		labels = append(labels, &label)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.DatabaseError{Operation: "list labels", Err: err}
	}
	return labels, nil
}

func scanLabel(row *sql.Row) (*types.Label, error) {
	var label types.Label
	err := row.Scan(&label.ID, &label.Name, &label.Color, &label.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &types.DatabaseError{Operation: "scan label", Err: err}
	}
	return &label, nil
}
