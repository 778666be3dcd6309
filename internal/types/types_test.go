package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIssueUpdateIsEmpty(t *testing.T) {
	var empty IssueUpdate
	if !empty.IsEmpty() {
		t.Error("zero update should be empty")
	}

	title := "x"
	if (&IssueUpdate{Title: &title}).IsEmpty() {
		t.Error("update with title should not be empty")
	}
	if (&IssueUpdate{Data: json.RawMessage(`{}`)}).IsEmpty() {
		t.Error("update with data should not be empty")
	}
}

func TestIssueUpdateOmitsAbsentFields(t *testing.T) {
	status := "closed"
	encoded, err := json.Marshal(&IssueUpdate{Status: &status})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != `{"status":"closed"}` {
		t.Errorf("encoded = %s, want only the provided field", encoded)
	}
}

func TestIssueUpdateIsDelete(t *testing.T) {
	deleted := StatusDeleted
	closed := StatusClosed
	if !(&IssueUpdate{Status: &deleted}).IsDelete() {
		t.Error("status=deleted should be a delete")
	}
	if (&IssueUpdate{Status: &closed}).IsDelete() {
		t.Error("status=closed is not a delete")
	}
}

func TestIssueDocuments(t *testing.T) {
	issue := &Issue{ID: "bd-001"}
	docs, err := issue.Documents()
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %v, want empty", docs)
	}

	issue.Data = json.RawMessage(`{"documents":{"a.md":"deadbeef"}}`)
	docs, err = issue.Documents()
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if docs["a.md"] != "deadbeef" {
		t.Errorf("docs = %v", docs)
	}
}

func TestKnownOp(t *testing.T) {
	for _, op := range []OpKind{OpCreate, OpUpdate, OpComment, OpLink, OpUnlink, OpArchive} {
		if !KnownOp(op) {
			t.Errorf("KnownOp(%s) = false", op)
		}
	}
	if KnownOp("destroy") {
		t.Error("unknown op accepted")
	}
}

func TestErrorUnwrapping(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&IssueNotFoundError{ID: "bd-001"}, ErrIssueNotFound},
		{&BlobNotFoundError{Hash: "x"}, ErrBlobNotFound},
		{&InvalidHashError{Hash: "x", Reason: "short"}, ErrInvalidHash},
		{&CircularDependencyError{Cycle: []string{"a", "b", "a"}}, ErrCircularDep},
		{&SelfDependencyError{ID: "a"}, ErrSelfDep},
		{&InvalidLabelNameError{Name: "!"}, ErrInvalidLabelName},
		{&InvalidEnumValueError{Field: "status", Value: "x"}, ErrInvalidEnumValue},
		{&MissingFieldError{Field: "title"}, ErrMissingField},
		{&MissingConfigError{Key: "id_prefix"}, ErrMissingConfig},
		{&RepoNotFoundError{}, ErrRepoNotFound},
		{&RepoAlreadyExistsError{Path: "/x"}, ErrRepoAlreadyExists},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%T does not unwrap to its sentinel", tt.err)
		}
	}
}

func TestCircularDependencyErrorMessage(t *testing.T) {
	err := &CircularDependencyError{Cycle: []string{"bd-001", "bd-003", "bd-002", "bd-001"}}
	want := "circular dependency: bd-001 -> bd-003 -> bd-002 -> bd-001"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
