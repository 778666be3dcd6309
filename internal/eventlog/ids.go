package eventlog

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/beadify/beadify/internal/types"
)

var idMu sync.Mutex

// NewEventID mints a ULID strictly greater than lastKnown (the highest
// event id this process has seen). Within one writer this keeps appended
// events in increasing id order even when the clock does not advance
// between calls: any draw not above lastKnown is discarded and drawn
// again. Within lastKnown's millisecond that is about half the draws, and
// when lastKnown carries a later timestamp the loop runs until the clock
// reaches it.
func NewEventID(lastKnown string) (string, error) {
	idMu.Lock()
	defer idMu.Unlock()

	for {
		id, err := ulid.New(ulid.Timestamp(time.Now()), crand.Reader)
		if err != nil {
			return "", &types.IOError{Action: "generate event id", Path: "", Err: err}
		}
		candidate := id.String()
		if lastKnown == "" || candidate > lastKnown {
			return candidate, nil
		}
	}
}

// ParseEventID validates that s is a canonical ULID string.
func ParseEventID(s string) error {
	_, err := ulid.ParseStrict(s)
	if err != nil {
		return &types.JSONError{Context: "event id " + s, Err: err}
	}
	return nil
}
