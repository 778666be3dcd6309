// Package beads implements the issue service: the public operations that
// compose the event log, the derived cache, and the blob store into
// all-or-nothing effects. Every mutation is logged first; the cache
// transaction follows, and a crash in between is repaired by the next
// incremental replay.
package beads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/beadify/beadify/internal/blob"
	"github.com/beadify/beadify/internal/config"
	"github.com/beadify/beadify/internal/debug"
	"github.com/beadify/beadify/internal/eventlog"
	"github.com/beadify/beadify/internal/replay"
	"github.com/beadify/beadify/internal/storage"
	"github.com/beadify/beadify/internal/storage/sqlite"
	"github.com/beadify/beadify/internal/types"
)

// Filesystem layout under the repo root.
const (
	BeadsDirName  = ".beads"
	EventsFile    = "events.jsonl"
	DBFile        = "beads.db"
	BlobsDirName  = "blobs"
	DocsDirName   = "docs"
	writeLockFile = ".write.lock"
)

// Repo owns the path set of one beads repository and the open handles to
// its three artifacts. No process-wide state: callers create a Repo, use
// it, and Close it.
type Repo struct {
	root     string
	beadsDir string

	log    *eventlog.Log
	store  storage.Storage
	blobs  *blob.Store
	engine *replay.Engine
	lock   *flock.Flock

	// Highest event id appended by this process; merged with the stored
	// watermark when minting the next id.
	lastEventID string
}

// Root returns the repository root directory.
func (r *Repo) Root() string { return r.root }

// BeadsDir returns the .beads directory path.
func (r *Repo) BeadsDir() string { return r.beadsDir }

// LogPath returns the events.jsonl path.
func (r *Repo) LogPath() string { return r.log.Path() }

// Blobs returns the content-addressed document store.
func (r *Repo) Blobs() *blob.Store { return r.blobs }

// Close releases the cache handle.
func (r *Repo) Close() error {
	return r.store.Close()
}

// Init creates a new repository at path: the .beads directory, an empty
// event log, the cache schema with its initial metadata, and the
// .gitignore entries for the two artifacts that must not be committed.
func Init(ctx context.Context, path, prefix string) (*Repo, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, &types.MissingFieldError{Field: "prefix"}
	}

	beadsDir := filepath.Join(path, BeadsDirName)
	if _, err := os.Stat(beadsDir); err == nil {
		return nil, &types.RepoAlreadyExistsError{Path: path}
	}

	if err := os.MkdirAll(filepath.Join(beadsDir, BlobsDirName), 0o755); err != nil {
		return nil, &types.IOError{Action: "create repo directory", Path: beadsDir, Err: err}
	}

	logPath := filepath.Join(beadsDir, EventsFile)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &types.IOError{Action: "create event log", Path: logPath, Err: err}
	}
	_ = f.Close()

	repo, err := open(ctx, path)
	if err != nil {
		return nil, err
	}

	err = repo.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetMeta(ctx, replay.MetaIDPrefix, prefix); err != nil {
			return err
		}
		return tx.SetMeta(ctx, replay.MetaLastIssueSerial, "0")
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	if err := extendGitignore(path); err != nil {
		_ = repo.Close()
		return nil, err
	}

	if err := config.WriteDefault(beadsDir, prefix); err != nil {
		_ = repo.Close()
		return nil, &types.IOError{Action: "write default config", Path: beadsDir, Err: err}
	}

	debug.Logf("init: repo created at %s with prefix %s", path, prefix)
	return repo, nil
}

// Find walks upward from startDir looking for a .beads directory and
// opens the repository that owns it.
func Find(ctx context.Context, startDir string) (*Repo, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, &types.IOError{Action: "resolve directory", Path: startDir, Err: err}
	}

	var searched []string
	for {
		searched = append(searched, dir)
		candidate := filepath.Join(dir, BeadsDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return Open(ctx, dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, &types.RepoNotFoundError{SearchedPaths: searched}
		}
		dir = parent
	}
}

// Open opens an existing repository rooted at root. If the log has grown
// past the cache's last_processed_offset (a crash between log append and
// cache commit, or an external merge) the cache is caught up before the
// repo is handed to the caller.
func Open(ctx context.Context, root string) (*Repo, error) {
	beadsDir := filepath.Join(root, BeadsDirName)
	if info, err := os.Stat(beadsDir); err != nil || !info.IsDir() {
		return nil, &types.RepoNotFoundError{SearchedPaths: []string{root}}
	}

	repo, err := open(ctx, root)
	if err != nil {
		return nil, err
	}

	if err := repo.catchUp(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func open(ctx context.Context, root string) (*Repo, error) {
	beadsDir := filepath.Join(root, BeadsDirName)

	store, err := sqlite.New(ctx, filepath.Join(beadsDir, DBFile))
	if err != nil {
		return nil, err
	}

	log := eventlog.New(filepath.Join(beadsDir, EventsFile))
	repo := &Repo{
		root:     root,
		beadsDir: beadsDir,
		log:      log,
		store:    store,
		blobs:    blob.NewStore(filepath.Join(beadsDir, BlobsDirName)),
		engine:   replay.New(log, store),
		lock:     flock.New(filepath.Join(beadsDir, writeLockFile)),
	}
	debug.SetRepoDir(beadsDir)
	return repo, nil
}

// catchUp runs an incremental replay when the log is longer than the
// applied prefix. The cache is derived state; a stale cache is never an
// error, just work to do.
func (r *Repo) catchUp(ctx context.Context) error {
	size, err := r.log.Size()
	if err != nil {
		return err
	}

	offset := int64(0)
	if v, err := r.store.GetMeta(ctx, replay.MetaLastOffset); err != nil {
		return err
	} else if v != "" {
		offset, _ = strconv.ParseInt(v, 10, 64)
	}

	if size <= offset {
		return nil
	}

	debug.Logf("open: log %d bytes ahead of cache, catching up", size-offset)
	return r.withWriteLock(func() error {
		_, err := r.engine.Incremental(ctx)
		return err
	})
}

// withWriteLock serializes mutating operations against other local
// processes using the repo-level file lock. A held lock means another
// invocation is mid-write; the caller gets a busy error rather than a
// blocked process.
func (r *Repo) withWriteLock(fn func() error) error {
	locked, err := r.lock.TryLock()
	if err != nil {
		return &types.IOError{Action: "acquire write lock", Path: r.lock.Path(), Err: err}
	}
	if !locked {
		return types.ErrRepoBusy
	}
	defer func() { _ = r.lock.Unlock() }()
	return fn()
}

// idPrefix reads the immutable repo prefix, failing with MissingConfig
// when the cache has no id_prefix (corrupt repo, or a cache file rebuilt
// from the log, which does not record the prefix).
func (r *Repo) idPrefix(ctx context.Context) (string, error) {
	prefix, err := r.store.GetMeta(ctx, replay.MetaIDPrefix)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return "", &types.MissingConfigError{Key: replay.MetaIDPrefix}
	}
	return prefix, nil
}

// nextEventID mints an event id strictly greater than both the stored
// watermark and anything this process already appended.
func (r *Repo) nextEventID(ctx context.Context) (string, error) {
	last, err := r.store.GetMeta(ctx, replay.MetaLastEventID)
	if err != nil {
		return "", err
	}
	if r.lastEventID > last {
		last = r.lastEventID
	}
	id, err := eventlog.NewEventID(last)
	if err != nil {
		return "", err
	}
	r.lastEventID = id
	return id, nil
}

// gitignore entries for the derived and ephemeral artifacts. The log and
// the blob store are committed; the cache and the docs workspace are not.
var gitignoreEntries = []string{
	BeadsDirName + "/" + DBFile,
	BeadsDirName + "/" + DocsDirName + "/",
}

func extendGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")

	existing := map[string]bool{}
	if content, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			existing[strings.TrimSpace(line)] = true
		}
	} else if !os.IsNotExist(err) {
		return &types.IOError{Action: "read gitignore", Path: path, Err: err}
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !existing[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &types.IOError{Action: "open gitignore", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	for _, entry := range missing {
		if _, err := fmt.Fprintln(f, entry); err != nil {
			return &types.IOError{Action: "extend gitignore", Path: path, Err: err}
		}
	}
	return nil
}
