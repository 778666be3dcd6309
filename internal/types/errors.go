package types

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Sentinel errors for the domain conditions callers branch on with
// errors.Is. Structured variants below wrap these so both styles work.
var (
	ErrRepoNotFound      = errors.New("beads repository not found")
	ErrRepoAlreadyExists = errors.New("beads repository already exists")
	ErrIssueNotFound     = errors.New("issue not found")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrInvalidHash       = errors.New("invalid hash")
	ErrCircularDep       = errors.New("circular dependency")
	ErrSelfDep           = errors.New("self dependency")
	ErrEmptyUpdate       = errors.New("update requires at least one field")
	ErrInvalidLabelName  = errors.New("invalid label name")
	ErrInvalidEnumValue  = errors.New("invalid enum value")
	ErrMissingField      = errors.New("missing required field")
	ErrMissingConfig     = errors.New("missing repository configuration")
	ErrDepNotFound       = errors.New("dependency not found")
	ErrLabelNotFound     = errors.New("label not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrRepoBusy          = errors.New("repository is locked by another process")
)

// RepoNotFoundError carries the paths searched while walking upward.
type RepoNotFoundError struct {
	SearchedPaths []string
}

func (e *RepoNotFoundError) Error() string {
	return fmt.Sprintf("beads repository not found (searched %d directories upward)", len(e.SearchedPaths))
}

func (e *RepoNotFoundError) Unwrap() error { return ErrRepoNotFound }

// RepoAlreadyExistsError reports an init target that already has .beads.
type RepoAlreadyExistsError struct {
	Path string
}

func (e *RepoAlreadyExistsError) Error() string {
	return fmt.Sprintf("beads repository already exists at %s", e.Path)
}

func (e *RepoAlreadyExistsError) Unwrap() error { return ErrRepoAlreadyExists }

// IssueNotFoundError identifies the missing issue.
type IssueNotFoundError struct {
	ID string
}

func (e *IssueNotFoundError) Error() string {
	return fmt.Sprintf("issue %s not found", e.ID)
}

func (e *IssueNotFoundError) Unwrap() error { return ErrIssueNotFound }

// BlobNotFoundError reports a hash with no backing file.
type BlobNotFoundError struct {
	Hash string
}

func (e *BlobNotFoundError) Error() string {
	return fmt.Sprintf("blob not found: %s", e.Hash)
}

func (e *BlobNotFoundError) Unwrap() error { return ErrBlobNotFound }

// InvalidHashError reports a syntactically malformed blob hash.
type InvalidHashError struct {
	Hash   string
	Reason string
}

func (e *InvalidHashError) Error() string {
	return fmt.Sprintf("invalid hash %q: %s", e.Hash, e.Reason)
}

func (e *InvalidHashError) Unwrap() error { return ErrInvalidHash }

// CircularDependencyError carries the cycle the rejected edge would close,
// as a path starting and ending at the same issue id.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDep }

// SelfDependencyError rejects an issue depending on itself.
type SelfDependencyError struct {
	ID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("issue %s cannot depend on itself", e.ID)
}

func (e *SelfDependencyError) Unwrap() error { return ErrSelfDep }

// InvalidLabelNameError reports a label name failing the character or
// length rules.
type InvalidLabelNameError struct {
	Name   string
	Reason string
}

func (e *InvalidLabelNameError) Error() string {
	return fmt.Sprintf("invalid label name %q: %s", e.Name, e.Reason)
}

func (e *InvalidLabelNameError) Unwrap() error { return ErrInvalidLabelName }

// InvalidEnumValueError reports a value outside a recognized set.
// Suggestion is set when a known value scores >= 0.75 similarity.
type InvalidEnumValueError struct {
	Field      string
	Value      string
	Valid      []string
	Suggestion string
}

func (e *InvalidEnumValueError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid %s %q (did you mean %q?)", e.Field, e.Value, e.Suggestion)
	}
	return fmt.Sprintf("invalid %s %q (valid: %s)", e.Field, e.Value, strings.Join(e.Valid, ", "))
}

func (e *InvalidEnumValueError) Unwrap() error { return ErrInvalidEnumValue }

// MissingFieldError reports a required field that was empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// MissingConfigError reports repo metadata without a required key, which
// means the cache is corrupt or the repo was never initialized.
type MissingConfigError struct {
	Key string
}

func (e *MissingConfigError) Error() string {
	return "missing repository configuration: " + e.Key
}

func (e *MissingConfigError) Unwrap() error { return ErrMissingConfig }

// IOError tags a system failure with the action being attempted and the
// path involved. PermissionDenied and DiskFull report the narrowed cause.
type IOError struct {
	Action string
	Path   string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Action, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PermissionDenied reports whether the underlying failure was EACCES/EPERM.
func (e *IOError) PermissionDenied() bool {
	return errors.Is(e.Err, os.ErrPermission)
}

// DiskFull reports whether the underlying failure was ENOSPC.
func (e *IOError) DiskFull() bool {
	return errors.Is(e.Err, syscall.ENOSPC)
}

// DatabaseError tags a cache failure with the operation being performed.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// JSONError tags a parse or serialization failure with its context. A
// JSONError during replay is fatal: the log is treated as corrupt.
type JSONError struct {
	Context string
	Err     error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("invalid JSON in %s: %v", e.Context, e.Err)
}

func (e *JSONError) Unwrap() error { return e.Err }
