package store

// keyspace.go implements C4, the CommonDataMap-equivalent: one logical
// database as a fixed-size vector of shards sharing a memory budget and a
// hash selector.
//
// © 2025 rescache authors. MIT License.

import (
	"sync/atomic"

	"github.com/sergz72/rescache/internal/hashselect"
)

// Keyspace is one logical database: N independently-lockable shards plus the
// directory-level bookkeeping the database directory needs to run its own
// LRU eviction over resident databases.
type Keyspace struct {
	shards   []*Shard
	selector hashselect.Selector

	lastAccessMs atomic.Int64
	isDirty      atomic.Bool
}

// NewKeyspace builds a keyspace of shardCount shards, each budgeted
// maxMemoryBytes/shardCount, selecting shards via the named hash function.
func NewKeyspace(shardCount int, maxMemoryBytes int64, hashSelectorName string, cleanupUsingLRU bool, clk clockSource) (*Keyspace, error) {
	sel, err := hashselect.New(hashSelectorName, shardCount)
	if err != nil {
		return nil, ErrInvalidInput(err.Error())
	}
	perShardBudget := maxMemoryBytes / int64(shardCount)
	shards := make([]*Shard, shardCount)
	for i := range shards {
		shards[i] = NewShard(perShardBudget, cleanupUsingLRU, clk)
	}
	return &Keyspace{shards: shards, selector: sel}, nil
}

// ShardFor returns the shard owning key.
func (ks *Keyspace) ShardFor(key []byte) *Shard {
	return ks.shards[ks.selector.Hash(key)]
}

// ShardAt returns the shard at a fixed index, for callers (persistence
// save/load) that must visit every shard rather than route by key.
func (ks *Keyspace) ShardAt(idx int) *Shard {
	return ks.shards[idx]
}

// ShardCount reports the fixed shard vector length.
func (ks *Keyspace) ShardCount() int {
	return len(ks.shards)
}

// FlushAll flushes every shard, returning the total entries removed. It
// marks the keyspace dirty when anything was actually deleted.
func (ks *Keyspace) FlushAll() int {
	total := 0
	for _, sh := range ks.shards {
		total += sh.Flush()
	}
	if total > 0 {
		ks.isDirty.Store(true)
	}
	return total
}

// Size sums the entry count across every shard.
func (ks *Keyspace) Size() int {
	total := 0
	for _, sh := range ks.shards {
		total += sh.Size()
	}
	return total
}

// MemoryBytes sums the accounted memory usage across every shard.
func (ks *Keyspace) MemoryBytes() int64 {
	var total int64
	for _, sh := range ks.shards {
		total += sh.MemoryBytes()
	}
	return total
}

// MarkDirty flags the keyspace as having unpersisted mutations.
func (ks *Keyspace) MarkDirty() {
	ks.isDirty.Store(true)
}

// Dirty reports whether the keyspace has unpersisted mutations since the
// last successful Save.
func (ks *Keyspace) Dirty() bool {
	return ks.isDirty.Load()
}

// ClearDirty marks the keyspace as persisted.
func (ks *Keyspace) ClearDirty() {
	ks.isDirty.Store(false)
}

// Touch stamps the keyspace's directory-level last-access time. Directory
// calls this on creation and from Directory.Touch, and reads it back to find
// the keyspace's current bucket in its access-time index.
func (ks *Keyspace) Touch(nowMs int64) {
	ks.lastAccessMs.Store(nowMs)
}

// LastAccessMs returns the last directory-level touch timestamp.
func (ks *Keyspace) LastAccessMs() int64 {
	return ks.lastAccessMs.Load()
}
