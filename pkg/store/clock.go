package store

import "time"

// clock.go centralises the monotonic "milliseconds since process start"
// timebase every shard uses for expires_at/last_access bookkeeping (spec.md
// §3), mirroring the original source's SystemTime captured once at
// CommonData construction and diffed on every access.

// clockSource abstracts "now, in milliseconds on some monotonic timebase" so
// tests can drive deterministic timestamps instead of racing wall-clock
// resolution.
type clockSource interface {
	nowMs() int64
}

// clock is the production clockSource: milliseconds elapsed since it was
// created. A single instance is shared by every keyspace in a directory so
// that timestamps compare meaningfully across shards.
type clock struct {
	start time.Time
}

func newClock() *clock {
	return &clock{start: time.Now()}
}

func (c *clock) nowMs() int64 {
	return time.Since(c.start).Milliseconds()
}
