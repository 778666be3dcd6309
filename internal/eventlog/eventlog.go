// Package eventlog owns the append-only JSONL log at .beads/events.jsonl.
// Each line is one event; the file is the single source of truth for the
// repo. Line order is not trusted: after a version-control merge the file
// may interleave collaborators' events, so readers always re-sort by
// event id before applying.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/beadify/beadify/internal/types"
)

// Log is a handle to one events.jsonl file.
type Log struct {
	path string
}

// New returns a handle for the log at path. The file may not exist yet;
// reads treat a missing file as an empty log.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append serializes the event, appends it as one newline-terminated line,
// and returns the file length after the write. The file is opened in
// O_APPEND mode so the offset arithmetic holds even if another local
// process appended in between.
func (l *Log) Append(event *types.Event) (int64, error) {
	encoded, err := json.Marshal(event)
	if err != nil {
		return 0, &types.JSONError{Context: "event " + event.EventID, Err: err}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &types.IOError{Action: "open log for append", Path: l.path, Err: err}
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return 0, &types.IOError{Action: "stat log", Path: l.path, Err: err}
	}
	start := stat.Size()

	if _, err := f.Write(append(encoded, '\n')); err != nil {
		return 0, &types.IOError{Action: "append to log", Path: l.path, Err: err}
	}

	return start + int64(len(encoded)) + 1, nil
}

// ReadAll parses the whole log. Returns the events in file order plus the
// byte offset one past the last line read. A missing file is an empty log.
func (l *Log) ReadAll() ([]*types.Event, int64, error) {
	return l.ReadFrom(0)
}

// ReadFrom parses the log starting at a byte offset (which must fall on a
// line boundary, i.e. a previously returned offset). Blank lines are
// skipped; any line that does not parse as an event is fatal, because a
// malformed log cannot be partially applied.
func (l *Log) ReadFrom(offset int64) ([]*types.Event, int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, 0, &types.IOError{Action: "open log", Path: l.path, Err: err}
	}
	defer func() { _ = f.Close() }()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, 0, &types.IOError{Action: "seek log", Path: l.path, Err: err}
		}
	}

	reader := bufio.NewReader(f)
	var events []*types.Event
	pos := offset
	lineNo := 0

	for {
		raw, err := reader.ReadBytes('\n')
		if len(raw) > 0 {
			lineNo++
			pos += int64(len(raw))

			line := trimLine(raw)
			if len(line) > 0 {
				event, perr := parseLine(line)
				if perr != nil {
					return nil, 0, fmt.Errorf("log line %d (offset %d): %w", lineNo, pos-int64(len(raw)), perr)
				}
				events = append(events, event)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, &types.IOError{Action: "read log", Path: l.path, Err: err}
		}
	}

	return events, pos, nil
}

// Size returns the current log length in bytes (0 when absent).
func (l *Log) Size() (int64, error) {
	stat, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, &types.IOError{Action: "stat log", Path: l.path, Err: err}
	}
	return stat.Size(), nil
}

// Sort orders events by event id ascending. ULIDs sort lexicographically
// in time order, so this is the canonical replay order.
func Sort(events []*types.Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].EventID < events[j].EventID
	})
}

func parseLine(line []byte) (*types.Event, error) {
	var event types.Event
	if err := json.Unmarshal(line, &event); err != nil {
		return nil, &types.JSONError{Context: "event log line", Err: err}
	}
	if event.EventID == "" {
		return nil, &types.JSONError{Context: "event log line", Err: fmt.Errorf("missing event_id")}
	}
	if !types.KnownOp(event.Op) {
		return nil, &types.JSONError{Context: "event log line", Err: fmt.Errorf("unknown op %q", event.Op)}
	}
	return &event, nil
}

func trimLine(raw []byte) []byte {
	for len(raw) > 0 && (raw[len(raw)-1] == '\n' || raw[len(raw)-1] == '\r') {
		raw = raw[:len(raw)-1]
	}
	for len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
		raw = raw[1:]
	}
	return raw
}
