// Package debug provides env-gated diagnostic logging. Output goes to
// stderr and, when a repo directory is known, to a size-rotated
// .beads/debug.log so long-running watchers don't grow it unbounded.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled = os.Getenv("BD_DEBUG") != ""

	mu     sync.Mutex
	sink   *lumberjack.Logger
	sinkAt string
)

// Enabled reports whether debug logging is on (BD_DEBUG set).
func Enabled() bool {
	return enabled
}

// SetRepoDir points the file sink at <dir>/debug.log. Safe to call more
// than once; a no-op when the directory is unchanged.
func SetRepoDir(beadsDir string) {
	mu.Lock()
	defer mu.Unlock()
	if beadsDir == sinkAt {
		return
	}
	sinkAt = beadsDir
	sink = &lumberjack.Logger{
		Filename:   filepath.Join(beadsDir, "debug.log"),
		MaxSize:    5, // megabytes
		MaxBackups: 2,
		Compress:   false,
	}
}

// Logf writes a timestamped line to stderr and the file sink. A silent
// no-op unless BD_DEBUG is set.
func Logf(format string, args ...interface{}) {
	if !enabled {
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	fmt.Fprint(os.Stderr, line)

	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		_, _ = sink.Write([]byte(line))
	}
}
