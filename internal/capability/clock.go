package capability

import "time"

// Clock is the time capability primitive (§4.2.6). It exposes a monotonic
// clock for measuring intervals and a wall clock for timestamps, and
// nothing else — no ambient timezone beyond UTC and a per-call format
// string, so two runs of the same script never disagree about "now"
// because of a host locale.
type Clock struct{}

// NewClock returns a time capability primitive.
func NewClock() *Clock { return &Clock{} }

// Now returns the current wall-clock time in UTC.
func (c *Clock) Now() time.Time { return time.Now().UTC() }

// Monotonic returns an opaque instant suitable only for measuring elapsed
// duration via Since; it carries no wall-clock meaning.
func (c *Clock) Monotonic() time.Time { return time.Now() }

// Since returns the duration elapsed since a Monotonic() reading.
func (c *Clock) Since(start time.Time) time.Duration { return time.Since(start) }

// Format renders t in UTC using layout, a Go reference-time format string
// supplied by the caller — Hull imposes no default layout.
func (c *Clock) Format(t time.Time, layout string) string {
	return t.UTC().Format(layout)
}

// UnixMilli returns t's Unix timestamp in milliseconds.
func (c *Clock) UnixMilli(t time.Time) int64 { return t.UnixMilli() }
