package beadify_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	beadify "github.com/beadify/beadify"
)

func setupRepo(t *testing.T) *beadify.Repo {
	t.Helper()
	repo, err := beadify.Init(context.Background(), t.TempDir(), "bd")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestEndToEndLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	event, err := repo.CreateIssue(ctx, beadify.CreateRequest{
		Title:    "Fix login",
		Kind:     beadify.KindBug,
		Priority: 2,
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if event.ID != "bd-001" {
		t.Fatalf("id = %s, want bd-001", event.ID)
	}

	status := beadify.StatusInProgress
	if _, err := repo.UpdateIssue(ctx, "bd-001", &beadify.IssueUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateIssue failed: %v", err)
	}

	issue, err := repo.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue.Status != beadify.StatusInProgress {
		t.Errorf("status = %s", issue.Status)
	}

	if _, err := repo.DeleteIssue(ctx, "bd-001"); err != nil {
		t.Fatalf("DeleteIssue failed: %v", err)
	}
	if _, err := repo.GetIssue(ctx, "bd-001"); !errors.Is(err, beadify.ErrIssueNotFound) {
		t.Errorf("err = %v, want ErrIssueNotFound", err)
	}
}

// snapshot of everything a query can see, for full-vs-incremental
// equivalence checks.
type state struct {
	Issues map[string]beadify.Issue
	Deps   map[string][]string
}

func capture(t *testing.T, repo *beadify.Repo) state {
	t.Helper()
	ctx := context.Background()

	issues, err := repo.GetAllIssues(ctx)
	if err != nil {
		t.Fatalf("GetAllIssues failed: %v", err)
	}
	s := state{Issues: map[string]beadify.Issue{}, Deps: map[string][]string{}}
	for _, issue := range issues {
		s.Issues[issue.ID] = *issue
		deps, err := repo.GetDependencies(ctx, issue.ID)
		if err != nil {
			t.Fatalf("GetDependencies failed: %v", err)
		}
		if len(deps) > 0 {
			s.Deps[issue.ID] = deps
		}
	}
	return s
}

// A randomized mixed-operation history, then: the cache produced
// incrementally along the way must equal a full rebuild of the same log.
func TestIncrementalEqualsFullAfterMixedHistory(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var live []string
	for i := 0; i < 100; i++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(live) == 0:
			// Dependencies ride the create payload so they survive a
			// full rebuild; a fresh issue can never close a cycle.
			var dependsOn []string
			if len(live) > 0 && rng.Intn(2) == 0 {
				dependsOn = []string{live[rng.Intn(len(live))]}
			}
			event, err := repo.CreateIssue(ctx, beadify.CreateRequest{
				Title:     fmt.Sprintf("issue %d", i),
				Kind:      beadify.KindTask,
				Priority:  rng.Intn(4),
				DependsOn: dependsOn,
			})
			if err != nil {
				t.Fatalf("CreateIssue failed: %v", err)
			}
			live = append(live, event.ID)
		case op < 8:
			id := live[rng.Intn(len(live))]
			notes := fmt.Sprintf("note %d", i)
			if _, err := repo.UpdateIssue(ctx, id, &beadify.IssueUpdate{Notes: &notes}); err != nil && !errors.Is(err, beadify.ErrIssueNotFound) {
				t.Fatalf("UpdateIssue failed: %v", err)
			}
		default:
			idx := rng.Intn(len(live))
			id := live[idx]
			if _, err := repo.DeleteIssue(ctx, id); err != nil && !errors.Is(err, beadify.ErrIssueNotFound) {
				t.Fatalf("DeleteIssue failed: %v", err)
			}
			live = append(live[:idx], live[idx+1:]...)
		}
	}

	incremental := capture(t, repo)

	if _, err := repo.Sync(ctx, true); err != nil {
		t.Fatalf("full Sync failed: %v", err)
	}
	full := capture(t, repo)

	if !reflect.DeepEqual(incremental, full) {
		t.Error("cache diverged between incremental history and full replay")
	}
}

func TestFindFromNestedDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := beadify.Init(ctx, dir, "bd")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = repo.Close()

	nested := filepath.Join(dir, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	found, err := beadify.Find(ctx, nested)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	defer func() { _ = found.Close() }()

	if _, err := beadify.Find(ctx, t.TempDir()); !errors.Is(err, beadify.ErrRepoNotFound) {
		t.Errorf("err = %v, want ErrRepoNotFound", err)
	}
}
