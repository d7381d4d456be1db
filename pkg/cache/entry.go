package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is the cached state read at the start of a request.
type Record struct {
	// Snapshot is the serialized product snapshot (nil when absent or corrupt)
	Snapshot []byte

	// LastWrite is when a reconciliation last confirmed the snapshot (nil if never)
	LastWrite *time.Time
}

// IsFresh reports whether the record may be served without reconciling.
// A record without a usable snapshot is never fresh.
func (r Record) IsFresh(now time.Time, maxAgeMinutes int) bool {
	if r.Snapshot == nil {
		return false
	}
	return IsFresh(r.LastWrite, now, maxAgeMinutes)
}

// IsFresh reports whether less than maxAgeMinutes have elapsed since lastWrite.
// The comparison is strict: an age of exactly maxAgeMinutes is stale.
// A nil lastWrite means never written and is stale.
func IsFresh(lastWrite *time.Time, now time.Time, maxAgeMinutes int) bool {
	if lastWrite == nil {
		return false
	}
	age := now.Sub(*lastWrite)
	return age < time.Duration(maxAgeMinutes)*time.Minute
}

// FormatTimestamp encodes t as Unix milliseconds.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseTimestamp decodes a Unix-milliseconds timestamp.
func ParseTimestamp(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if ms < 0 {
		return time.Time{}, fmt.Errorf("%w: negative timestamp %d", ErrInvalidEntry, ms)
	}
	return time.UnixMilli(ms), nil
}

// validSnapshot reports whether raw decodes as a JSON array.
func validSnapshot(raw string) bool {
	var items []json.RawMessage
	return json.Unmarshal([]byte(raw), &items) == nil && items != nil
}
