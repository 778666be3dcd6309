package beads

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beadify/beadify/internal/types"
)

// AttachDocument stores content in the blob store and binds it to the
// issue under docName in data.documents, overwriting any prior binding
// for that name. The rebind itself is an ordinary update event, so the
// binding history lives in the log like every other mutation.
func (r *Repo) AttachDocument(ctx context.Context, issueID, docName string, content []byte) (string, error) {
	if docName == "" {
		return "", &types.MissingFieldError{Field: "document name"}
	}

	issue, err := r.GetIssue(ctx, issueID)
	if err != nil {
		return "", err
	}

	hash, err := r.blobs.Write(content)
	if err != nil {
		return "", err
	}

	data, err := issueDataMap(issue)
	if err != nil {
		return "", err
	}

	documents, _ := data["documents"].(map[string]interface{})
	if documents == nil {
		documents = map[string]interface{}{}
	}
	documents[docName] = hash
	data["documents"] = documents

	encoded, err := json.Marshal(data)
	if err != nil {
		return "", &types.JSONError{Context: "issue data for " + issueID, Err: err}
	}

	if _, err := r.UpdateIssue(ctx, issueID, &types.IssueUpdate{Data: encoded}); err != nil {
		return "", err
	}
	return hash, nil
}

// GetIssueDocuments returns the name -> blob hash map attached to the
// issue.
func (r *Repo) GetIssueDocuments(ctx context.Context, issueID string) (map[string]string, error) {
	issue, err := r.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return issue.Documents()
}

// ReadDocument returns the content of the named attached document.
func (r *Repo) ReadDocument(ctx context.Context, issueID, docName string) ([]byte, error) {
	hash, err := r.documentHash(ctx, issueID, docName)
	if err != nil {
		return nil, err
	}
	return r.blobs.Read(hash)
}

// ExportDocument materializes the named document into the ephemeral
// workspace at .beads/docs/<issue>/<name> for editing, returning the
// workspace path. The workspace is VCS-ignored; the blob remains the
// durable copy.
func (r *Repo) ExportDocument(ctx context.Context, issueID, docName string) (string, error) {
	content, err := r.ReadDocument(ctx, issueID, docName)
	if err != nil {
		return "", err
	}

	workspace := filepath.Join(r.beadsDir, DocsDirName, issueID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", &types.IOError{Action: "create docs workspace", Path: workspace, Err: err}
	}

	path := filepath.Join(workspace, docName)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", &types.IOError{Action: "write workspace document", Path: path, Err: err}
	}
	return path, nil
}

// ImportDocument reads the edited workspace copy back and re-attaches it.
// Returns the resulting hash and whether the content actually changed.
func (r *Repo) ImportDocument(ctx context.Context, issueID, docName string) (string, bool, error) {
	path := filepath.Join(r.beadsDir, DocsDirName, issueID, docName)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false, &types.IOError{Action: "read workspace document", Path: path, Err: err}
	}

	oldHash, err := r.documentHash(ctx, issueID, docName)
	if err != nil {
		return "", false, err
	}

	newHash, err := r.AttachDocument(ctx, issueID, docName, content)
	if err != nil {
		return "", false, err
	}
	return newHash, newHash != oldHash, nil
}

func (r *Repo) documentHash(ctx context.Context, issueID, docName string) (string, error) {
	documents, err := r.GetIssueDocuments(ctx, issueID)
	if err != nil {
		return "", err
	}
	hash, ok := documents[docName]
	if !ok {
		return "", fmt.Errorf("document %q on issue %s: %w", docName, issueID, types.ErrDocumentNotFound)
	}
	return hash, nil
}

// issueDataMap decodes issue.Data as an object, treating absent data as
// an empty object. Non-object data (a bare list or scalar) is an error:
// silently replacing it would destroy caller state.
func issueDataMap(issue *types.Issue) (map[string]interface{}, error) {
	if len(issue.Data) == 0 {
		return map[string]interface{}{}, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(issue.Data, &data); err != nil {
		return nil, &types.JSONError{Context: "issue data for " + issue.ID, Err: err}
	}
	if data == nil {
		return map[string]interface{}{}, nil
	}
	return data, nil
}
