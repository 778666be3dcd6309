package beads

import (
	"context"

	"github.com/beadify/beadify/internal/debug"
)

// Sync reduces the log onto the cache: the operation to run after an
// external merge has brought new lines into events.jsonl. Incremental by
// default; full forces a rebuild from byte zero. Returns the number of
// events applied.
func (r *Repo) Sync(ctx context.Context, full bool) (int, error) {
	applied := 0
	err := r.withWriteLock(func() error {
		var err error
		if full {
			applied, err = r.engine.Full(ctx)
		} else {
			applied, err = r.engine.Incremental(ctx)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	debug.Logf("sync: %d events applied (full=%v)", applied, full)
	return applied, nil
}
