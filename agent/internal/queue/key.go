package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueuePath is the storage prefix under which queued events are kept.
const QueuePath = "ex-q"

// keyTimeLayout is fixed width so keys of the same path sort by time.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// NewKey returns a storage key for an event enqueued at now. The random
// suffix keeps keys unique when several events share a timestamp.
func NewKey(now time.Time) string {
	return QueuePath + "-" + now.UTC().Format(keyTimeLayout) + "-" + uuid.NewString()
}

// KeyTime extracts the enqueue time from a key produced by NewKey.
func KeyTime(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, QueuePath+"-")
	if !ok || len(rest) < len(keyTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimeLayout, rest[:len(keyTimeLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
