package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/beadify/beadify/internal/eventlog"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/storage/sqlite"
	"github.com/beadify/beadify/internal/types"
)

func setupEngine(t *testing.T) (*Engine, *eventlog.Log, *sqlite.SQLiteStorage) {
	t.Helper()

	dir := t.TempDir()
	log := eventlog.New(filepath.Join(dir, "events.jsonl"))
	store, err := sqlite.New(context.Background(), filepath.Join(dir, "beads.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	err = store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		if err := tx.SetMeta(context.Background(), MetaIDPrefix, "bd"); err != nil {
			return err
		}
		return tx.SetMeta(context.Background(), MetaLastIssueSerial, "0")
	})
	if err != nil {
		t.Fatalf("failed to seed meta: %v", err)
	}

	return New(log, store), log, store
}

func appendEvent(t *testing.T, log *eventlog.Log, lastID string, op types.OpKind, issueID string, data string) *types.Event {
	t.Helper()
	eventID, err := eventlog.NewEventID(lastID)
	if err != nil {
		t.Fatalf("NewEventID failed: %v", err)
	}
	event := &types.Event{
		EventID: eventID,
		TS:      types.NowUTC(),
		Op:      op,
		ID:      issueID,
		Actor:   "tester",
		Data:    json.RawMessage(data),
	}
	if _, err := log.Append(event); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return event
}

func createData(title string, serial int) string {
	return fmt.Sprintf(`{"title":%q,"kind":"task","priority":1,"created_at":"2026-01-01T00:00:%02d.000Z"}`, title, serial%60)
}

// snapshot captures the observable cache state for equality checks.
type cacheSnapshot struct {
	Issues map[string]types.Issue
	Deps   map[string][]string
}

func snapshot(t *testing.T, store *sqlite.SQLiteStorage) cacheSnapshot {
	t.Helper()
	ctx := context.Background()

	issues, err := store.GetAllIssues(ctx)
	if err != nil {
		t.Fatalf("GetAllIssues failed: %v", err)
	}
	deps, err := store.GetAllDependencies(ctx)
	if err != nil {
		t.Fatalf("GetAllDependencies failed: %v", err)
	}

	snap := cacheSnapshot{Issues: map[string]types.Issue{}, Deps: deps}
	for _, issue := range issues {
		snap.Issues[issue.ID] = *issue
	}
	return snap
}

func TestFullReplayBasics(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev1 := appendEvent(t, log, "", types.OpCreate, "bd-001", createData("First", 1))
	appendEvent(t, log, ev1.EventID, types.OpUpdate, "bd-001", `{"status":"closed"}`)

	applied, err := engine.Full(ctx)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}

	issue, err := store.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue == nil || issue.Status != types.StatusClosed {
		t.Errorf("issue = %+v, want closed", issue)
	}

	offset, err := store.GetMeta(ctx, MetaLastOffset)
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	size, err := log.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if offset != fmt.Sprint(size) {
		t.Errorf("last_processed_offset = %s, want %d", offset, size)
	}
}

func TestReplayDeterministicUnderShuffle(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	last := ""
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("bd-%03d", i)
		ev := appendEvent(t, log, last, types.OpCreate, id, createData("Issue "+id, i))
		last = ev.EventID
		ev = appendEvent(t, log, last, types.OpUpdate, id, fmt.Sprintf(`{"notes":"updated %d"}`, i))
		last = ev.EventID
	}
	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	want := snapshot(t, store)

	// Shuffle the physical lines and replay again.
	raw, err := os.ReadFile(log.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := splitLines(raw)
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(lines), func(i, j int) { lines[i], lines[j] = lines[j], lines[i] })
	if err := os.WriteFile(log.Path(), joinLines(lines), 0o644); err != nil {
		t.Fatalf("write shuffled log: %v", err)
	}

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full on shuffled log failed: %v", err)
	}
	got := snapshot(t, store)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("shuffled replay diverged:\n got %+v\nwant %+v", got, want)
	}
}

func TestReplayIdempotent(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev := appendEvent(t, log, "", types.OpCreate, "bd-001", createData("Only", 1))
	appendEvent(t, log, ev.EventID, types.OpUpdate, "bd-001", `{"priority":3}`)

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("first Full failed: %v", err)
	}
	first := snapshot(t, store)

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("second Full failed: %v", err)
	}
	second := snapshot(t, store)

	if !reflect.DeepEqual(first, second) {
		t.Error("replay is not idempotent")
	}
}

func TestIncrementalCatchUpEquivalence(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev := appendEvent(t, log, "", types.OpCreate, "bd-001", createData("A", 1))
	if _, err := engine.Incremental(ctx); err != nil {
		t.Fatalf("first Incremental failed: %v", err)
	}

	ev = appendEvent(t, log, ev.EventID, types.OpCreate, "bd-002", createData("B", 2))
	appendEvent(t, log, ev.EventID, types.OpUpdate, "bd-001", `{"status":"in_progress"}`)
	applied, err := engine.Incremental(ctx)
	if err != nil {
		t.Fatalf("second Incremental failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	incremental := snapshot(t, store)

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	full := snapshot(t, store)

	if !reflect.DeepEqual(incremental, full) {
		t.Errorf("incremental and full diverged:\n inc %+v\nfull %+v", incremental, full)
	}
}

func TestIncrementalFallsBackOnOutOfOrder(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	// Mint the later id first, then write the lines so the earlier event
	// sits after the later one in the file: the merge scenario.
	earlierID, err := eventlog.NewEventID("")
	if err != nil {
		t.Fatalf("NewEventID failed: %v", err)
	}
	laterID, err := eventlog.NewEventID(earlierID)
	if err != nil {
		t.Fatalf("NewEventID failed: %v", err)
	}

	later := &types.Event{EventID: laterID, TS: types.NowUTC(), Op: types.OpUpdate, ID: "bd-001", Actor: "remote", Data: json.RawMessage(`{"status":"closed"}`)}
	if _, err := log.Append(later); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := engine.Incremental(ctx); err != nil {
		t.Fatalf("Incremental failed: %v", err)
	}

	earlier := &types.Event{EventID: earlierID, TS: types.NowUTC(), Op: types.OpCreate, ID: "bd-001", Actor: "remote", Data: json.RawMessage(createData("Merged", 1))}
	if _, err := log.Append(earlier); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := engine.Incremental(ctx); err != nil {
		t.Fatalf("Incremental with out-of-order suffix failed: %v", err)
	}

	issue, err := store.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue == nil {
		t.Fatal("issue missing after fallback replay")
	}
	if issue.Status != types.StatusClosed {
		t.Errorf("status = %s, want closed (later update must win)", issue.Status)
	}
}

func TestCreateBornDeletedSkipsCache(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	appendEvent(t, log, "", types.OpCreate, "bd-001", `{"title":"Ghost","kind":"task","priority":1,"status":"deleted"}`)

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full failed: %v", err)
	}

	issue, err := store.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue != nil {
		t.Errorf("born-deleted issue present in cache: %+v", issue)
	}
}

func TestDeleteEventRepairsReferences(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev := appendEvent(t, log, "", types.OpCreate, "bd-001", `{"title":"See bd-002 for context","kind":"task","priority":1}`)
	ev = appendEvent(t, log, ev.EventID, types.OpCreate, "bd-002", createData("Victim", 2))
	appendEvent(t, log, ev.EventID, types.OpUpdate, "bd-002", `{"status":"deleted"}`)

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full failed: %v", err)
	}

	victim, err := store.GetIssue(ctx, "bd-002")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if victim != nil {
		t.Error("deleted issue still cached")
	}

	survivor, err := store.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if survivor.Title != "See [deleted:bd-002] for context" {
		t.Errorf("title = %q", survivor.Title)
	}
}

func TestReservedOpsAreNoOps(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev := appendEvent(t, log, "", types.OpCreate, "bd-001", createData("Base", 1))
	ev = appendEvent(t, log, ev.EventID, types.OpComment, "bd-001", `{"text":"hello"}`)
	ev = appendEvent(t, log, ev.EventID, types.OpLink, "bd-001", `{"to":"bd-002"}`)
	ev = appendEvent(t, log, ev.EventID, types.OpUnlink, "bd-001", `{"to":"bd-002"}`)
	appendEvent(t, log, ev.EventID, types.OpArchive, "bd-001", `{}`)

	applied, err := engine.Full(ctx)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	if applied != 5 {
		t.Errorf("applied = %d, want 5 (reserved ops count as applied)", applied)
	}

	issue, err := store.GetIssue(ctx, "bd-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue == nil || issue.Title != "Base" {
		t.Errorf("issue changed by reserved ops: %+v", issue)
	}
}

func TestSerialBumpAfterMergedCreates(t *testing.T) {
	engine, log, store := setupEngine(t)
	ctx := context.Background()

	ev := appendEvent(t, log, "", types.OpCreate, "bd-001", createData("Local", 1))
	appendEvent(t, log, ev.EventID, types.OpCreate, "bd-007", createData("Merged in", 7))

	if _, err := engine.Full(ctx); err != nil {
		t.Fatalf("Full failed: %v", err)
	}

	serial, err := store.GetMeta(ctx, MetaLastIssueSerial)
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if serial != "7" {
		t.Errorf("last_issue_serial = %s, want 7", serial)
	}
}

func splitLines(raw []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			lines = append(lines, raw[start:i])
			start = i + 1
		}
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var out []byte
	for _, line := range lines {
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}
