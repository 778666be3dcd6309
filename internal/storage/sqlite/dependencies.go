package sqlite

import (
	"context"

	"github.com/beadify/beadify/internal/types"
)

// AddDependency inserts the edge when both endpoints are cached. Already
// present edges and edges with missing endpoints are silently skipped:
// during replay a create payload may reference an issue that was deleted
// later in the log, and that edge simply has no place in the cache.
func (t *sqliteTx) AddDependency(ctx context.Context, issueID, dependsOnID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO dependencies (issue_id, depends_on_id)
		SELECT ?, ?
		WHERE EXISTS (SELECT 1 FROM issues WHERE id = ?)
		  AND EXISTS (SELECT 1 FROM issues WHERE id = ?)
	`, issueID, dependsOnID, issueID, dependsOnID)
	if err != nil {
		return &types.DatabaseError{Operation: "add dependency " + issueID + " -> " + dependsOnID, Err: err}
	}
	return nil
}

// RemoveDependency deletes the edge, reporting whether it existed.
func (t *sqliteTx) RemoveDependency(ctx context.Context, issueID, dependsOnID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM dependencies WHERE issue_id = ? AND depends_on_id = ?
	`, issueID, dependsOnID)
	if err != nil {
		return false, &types.DatabaseError{Operation: "remove dependency " + issueID + " -> " + dependsOnID, Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, &types.DatabaseError{Operation: "remove dependency " + issueID + " -> " + dependsOnID, Err: err}
	}
	return rows > 0, nil
}

// GetDependencies returns the ids this issue depends on, sorted.
func (s *SQLiteStorage) GetDependencies(ctx context.Context, issueID string) ([]string, error) {
	return s.idColumn(ctx, `
		SELECT depends_on_id FROM dependencies
		WHERE issue_id = ? ORDER BY depends_on_id
	`, issueID)
}

// GetDependents returns the ids that depend on this issue, sorted.
func (s *SQLiteStorage) GetDependents(ctx context.Context, issueID string) ([]string, error) {
	return s.idColumn(ctx, `
		SELECT issue_id FROM dependencies
		WHERE depends_on_id = ? ORDER BY issue_id
	`, issueID)
}

// GetOpenDependencies returns the blocker issues that are not closed,
// i.e. the dependencies still standing in the way.
func (s *SQLiteStorage) GetOpenDependencies(ctx context.Context, issueID string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+`
		FROM issues
		JOIN dependencies d ON d.depends_on_id = issues.id
		WHERE d.issue_id = ? AND issues.status != ?
		ORDER BY issues.id
	`, issueID, types.StatusClosed)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "list open dependencies of " + issueID, Err: err}
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
		return nil, &types.DatabaseError{Operation: "list open dependencies of " + issueID, Err: err}
	}
	return issues, nil
}

// GetAllDependencies returns the forward adjacency of the whole edge set,
// used for cycle detection and transitive traversal.
func (s *SQLiteStorage) GetAllDependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id, depends_on_id FROM dependencies ORDER BY issue_id, depends_on_id
	`)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "list dependencies", Err: err}
	}
	defer func() { _ = rows.Close() }()

	adjacency := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, &types.DatabaseError{Operation: "scan dependency", Err: err}
		}
		adjacency[from] = append(adjacency[from], to)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.DatabaseError{Operation: "list dependencies", Err: err}
	}
	return adjacency, nil
}

func (s *SQLiteStorage) idColumn(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.DatabaseError{Operation: "query ids", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &types.DatabaseError{Operation: "scan id", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.DatabaseError{Operation: "query ids", Err: err}
	}
	return ids, nil
}
