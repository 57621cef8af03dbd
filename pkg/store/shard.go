package store

// shard.go implements C3, the GenericMap-equivalent of the original source's
// generic_maps.rs + common_maps.rs: one independently-lockable primary map
// plus the two auxiliary ordered indexes, memory accounting, and eviction.
//
// © 2025 rescache authors. MIT License.

import (
	"sync"
	"sync/atomic"
)

// GetStatus reports the outcome of a read-shaped shard operation.
type GetStatus uint8

const (
	StatusNotFound GetStatus = iota
	StatusFound
	StatusExpired
	StatusWrongType
)

const noTTL = -1

type storedValue struct {
	value        ValueHolder
	lastAccessMs atomic.Int64
	expiresAtMs  int64 // noTTL when unset
}

func (sv *storedValue) hasTTL() bool { return sv.expiresAtMs != noTTL }

// recordSize implements the §3 accounting contract: 3*key.len + value.size() + 16.
func recordSize(keyLen int, v ValueHolder) int64 {
	return int64(3*keyLen+v.Size()) + 16
}

// Shard owns one primary map and its two auxiliary time-ordered indexes. The
// primary map and by_expiration index share mu; by_access_time has its own
// mutex so that a plain read can bump last-access without taking mu
// exclusively (§5: "the stamp itself is an atomic swap; the accompanying
// index migration takes a short exclusive hold on the shard's
// auxiliary-index lock").
type Shard struct {
	mu    sync.RWMutex
	auxMu sync.Mutex

	primary      map[string]*storedValue
	byExpiration map[int64]map[string]struct{}
	byAccess     map[int64]map[string]struct{}

	currentMemoryBytes int64
	maxMemoryBytes     int64
	cleanupUsingLRU    bool

	clk clockSource
}

// NewShard constructs an empty shard with the given memory budget.
func NewShard(maxMemoryBytes int64, cleanupUsingLRU bool, clk clockSource) *Shard {
	return &Shard{
		primary:         make(map[string]*storedValue),
		byExpiration:    make(map[int64]map[string]struct{}),
		byAccess:        make(map[int64]map[string]struct{}),
		maxMemoryBytes:  maxMemoryBytes,
		cleanupUsingLRU: cleanupUsingLRU,
		clk:             clk,
	}
}

// Size returns the number of live entries.
func (s *Shard) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primary)
}

// MemoryBytes reports the shard's current accounted memory usage.
func (s *Shard) MemoryBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentMemoryBytes
}

// Flush deletes every entry and returns the count removed.
func (s *Shard) Flush() int {
	s.mu.Lock()
	n := len(s.primary)
	s.primary = make(map[string]*storedValue)
	s.byExpiration = make(map[int64]map[string]struct{})
	s.currentMemoryBytes = 0
	s.mu.Unlock()

	s.auxMu.Lock()
	s.byAccess = make(map[int64]map[string]struct{})
	s.auxMu.Unlock()
	return n
}

// RemoveKey deletes a single key, returning 1 if it was present, 0 otherwise.
func (s *Shard) RemoveKey(key []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeKeyLocked(string(key))
}

// RemoveKeys deletes every listed key under a single lock acquisition,
// returning the total removed.
func (s *Shard) RemoveKeys(keys [][]byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, k := range keys {
		total += s.removeKeyLocked(string(k))
	}
	return total
}

// removeKeyLocked requires mu held exclusively. It takes auxMu internally
// only if the key carries a last-access bucket membership.
func (s *Shard) removeKeyLocked(k string) int {
	sv, ok := s.primary[k]
	if !ok {
		return 0
	}
	delete(s.primary, k)
	s.currentMemoryBytes -= recordSize(len(k), sv.value)
	if sv.hasTTL() {
		s.removeFromBucketLocked(s.byExpiration, sv.expiresAtMs, k)
	}
	if s.cleanupUsingLRU {
		s.auxMu.Lock()
		s.removeFromBucketLocked(s.byAccess, sv.lastAccessMs.Load(), k)
		s.auxMu.Unlock()
	}
	return 1
}

func (s *Shard) removeFromBucketLocked(index map[int64]map[string]struct{}, ts int64, k string) {
	bucket, ok := index[ts]
	if !ok {
		return
	}
	delete(bucket, k)
	if len(bucket) == 0 {
		delete(index, ts)
	}
}

func (s *Shard) insertIntoBucketLocked(index map[int64]map[string]struct{}, ts int64, k string) {
	bucket, ok := index[ts]
	if !ok {
		bucket = make(map[string]struct{})
		index[ts] = bucket
	}
	bucket[k] = struct{}{}
}

// Get looks up key and requires it hold a scalar (Int or Str) value — a
// Hash or Set holder yields StatusWrongType, matching the original get()'s
// "no scalar encoding available" rule. On StatusExpired, the expired entry
// has already been removed (the lock upgrade from shared to exclusive
// happens inside this call, per §5 — not atomic, so a racing writer may have
// already removed or replaced the key; either outcome is accepted).
func (s *Shard) Get(key []byte) (ValueHolder, GetStatus) {
	v, status := s.getRaw(key)
	if status != StatusFound {
		return v, status
	}
	if v.Kind() != KindInt && v.Kind() != KindStr {
		return ValueHolder{}, StatusWrongType
	}
	return v, status
}

// getRaw looks up key without constraining the stored variant.
func (s *Shard) getRaw(key []byte) (ValueHolder, GetStatus) {
	k := string(key)
	s.mu.RLock()
	sv, ok := s.primary[k]
	if !ok {
		s.mu.RUnlock()
		return ValueHolder{}, StatusNotFound
	}
	if sv.hasTTL() && s.clk.nowMs() >= sv.expiresAtMs {
		s.mu.RUnlock()
		s.mu.Lock()
		if sv2, ok2 := s.primary[k]; ok2 && sv2.hasTTL() && s.clk.nowMs() >= sv2.expiresAtMs {
			s.removeKeyLocked(k)
		}
		s.mu.Unlock()
		return ValueHolder{}, StatusExpired
	}
	v := sv.value
	s.mu.RUnlock()

	s.bumpAccess(k, sv)
	return v, StatusFound
}

// bumpAccess stamps last-access as an atomic swap and migrates the key's
// by_access_time bucket only when LRU eviction is enabled and the millisecond
// actually changed. The whole stamp-and-migrate sequence runs under mu held
// for read: removeKeyLocked needs mu held for write, so this prevents it from
// observing the swapped timestamp and deleting k from primary while the
// bucket migration is still in flight, which would otherwise leave a phantom
// byAccess entry for a key no longer in primary.
func (s *Shard) bumpAccess(k string, sv *storedValue) {
	if !s.cleanupUsingLRU {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if current, ok := s.primary[k]; !ok || current != sv {
		return
	}
	now := s.clk.nowMs()
	old := sv.lastAccessMs.Swap(now)
	if old == now {
		return
	}
	s.auxMu.Lock()
	s.removeFromBucketLocked(s.byAccess, old, k)
	s.insertIntoBucketLocked(s.byAccess, now, k)
	s.auxMu.Unlock()
}

// HGet looks up field within the Hash value stored at key.
func (s *Shard) HGet(key, field []byte) (ValueHolder, GetStatus) {
	v, status := s.getRaw(key)
	if status != StatusFound {
		return ValueHolder{}, status
	}
	h, ok := v.AsHash()
	if !ok {
		return ValueHolder{}, StatusWrongType
	}
	fv, ok := h[string(field)]
	if !ok {
		return ValueHolder{}, StatusNotFound
	}
	return NewStr(fv), StatusFound
}

// HGetAll returns the full field map stored at key.
func (s *Shard) HGetAll(key []byte) (map[string][]byte, GetStatus) {
	v, status := s.getRaw(key)
	if status != StatusFound {
		return nil, status
	}
	h, ok := v.AsHash()
	if !ok {
		return nil, StatusWrongType
	}
	return h, StatusFound
}

// Set runs the §4.3 admission protocol and installs value at key with an
// optional TTL (ttlMs is a duration in milliseconds from now, nil for no
// expiry).
func (s *Shard) Set(key []byte, value ValueHolder, ttlMs *int64) error {
	k := string(key)
	now := s.clk.nowMs()
	newSize := recordSize(len(k), value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentMemoryBytes += newSize
	if s.currentMemoryBytes >= s.maxMemoryBytes {
		if !s.cleanup(now) {
			s.currentMemoryBytes -= newSize
			return ErrOutOfMemory()
		}
	}

	if old, exists := s.primary[k]; exists {
		s.currentMemoryBytes -= recordSize(len(k), old.value)
		if old.hasTTL() {
			s.removeFromBucketLocked(s.byExpiration, old.expiresAtMs, k)
		}
		if s.cleanupUsingLRU {
			s.auxMu.Lock()
			s.removeFromBucketLocked(s.byAccess, old.lastAccessMs.Load(), k)
			s.auxMu.Unlock()
		}
	}

	sv := &storedValue{value: value, expiresAtMs: noTTL}
	sv.lastAccessMs.Store(now)
	if ttlMs != nil {
		sv.expiresAtMs = now + *ttlMs
		s.insertIntoBucketLocked(s.byExpiration, sv.expiresAtMs, k)
	}
	if s.cleanupUsingLRU {
		s.auxMu.Lock()
		s.insertIntoBucketLocked(s.byAccess, now, k)
		s.auxMu.Unlock()
	}
	s.primary[k] = sv
	return nil
}

// cleanup requires mu held exclusively. It sweeps expired entries first and,
// only if still over budget, evicts whole by_access_time buckets when LRU is
// enabled. Returns false when the budget cannot be satisfied.
func (s *Shard) cleanup(now int64) bool {
	if s.currentMemoryBytes < s.maxMemoryBytes {
		return true
	}
	s.sweepExpiredLocked(now)
	if s.currentMemoryBytes < s.maxMemoryBytes {
		return true
	}
	if !s.cleanupUsingLRU {
		return false
	}
	for s.currentMemoryBytes >= s.maxMemoryBytes {
		victim, ok := s.lowestAccessBucket()
		if !ok {
			return false
		}
		for k := range victim {
			s.removeKeyLocked(k)
		}
	}
	return true
}

// sweepExpiredLocked requires mu held exclusively.
func (s *Shard) sweepExpiredLocked(now int64) {
	var expired []string
	for deadline, keys := range s.byExpiration {
		if deadline >= now {
			continue
		}
		for k := range keys {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		s.removeKeyLocked(k)
	}
}

func (s *Shard) lowestAccessBucket() (map[string]struct{}, bool) {
	s.auxMu.Lock()
	defer s.auxMu.Unlock()
	var lowest int64
	found := false
	for ts := range s.byAccess {
		if !found || ts < lowest {
			lowest = ts
			found = true
		}
	}
	if !found {
		return nil, false
	}
	cp := make(map[string]struct{}, len(s.byAccess[lowest]))
	for k := range s.byAccess[lowest] {
		cp[k] = struct{}{}
	}
	return cp, true
}

// HSet inserts key as a fresh Hash if absent, or merges fields into an
// existing Hash value, returning the count of newly-inserted fields. Fails
// with ErrWrongType if key holds a non-Hash value, ErrOutOfMemory if the
// resulting size cannot be admitted.
func (s *Shard) HSet(key []byte, fields map[string][]byte) (int, error) {
	k := string(key)
	now := s.clk.nowMs()

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.primary[k]
	if !exists {
		newVal := NewHash(nil)
		inserted, _ := newVal.Merge(fields)
		newSize := recordSize(len(k), newVal)
		s.currentMemoryBytes += newSize
		if s.currentMemoryBytes >= s.maxMemoryBytes {
			if !s.cleanup(now) {
				s.currentMemoryBytes -= newSize
				return 0, ErrOutOfMemory()
			}
		}
		sv := &storedValue{value: newVal, expiresAtMs: noTTL}
		sv.lastAccessMs.Store(now)
		s.primary[k] = sv
		if s.cleanupUsingLRU {
			s.auxMu.Lock()
			s.insertIntoBucketLocked(s.byAccess, now, k)
			s.auxMu.Unlock()
		}
		return inserted, nil
	}

	if old.value.Kind() != KindHash {
		return 0, ErrWrongType()
	}

	// Snapshot every field Merge is about to touch so a rejected admission
	// can be undone exactly: old.value.Merge mutates the hash in place, and
	// currentMemoryBytes must not end up counting a merge that didn't stick.
	h, _ := old.value.AsHash()
	type fieldBackup struct {
		val     []byte
		existed bool
	}
	backups := make(map[string]fieldBackup, len(fields))
	for f := range fields {
		val, existed := h[f]
		backups[f] = fieldBackup{val: val, existed: existed}
	}

	preSize := recordSize(len(k), old.value)
	inserted, err := old.value.Merge(fields)
	if err != nil {
		return 0, err
	}
	postSize := recordSize(len(k), old.value)
	delta := postSize - preSize
	s.currentMemoryBytes += delta
	if s.currentMemoryBytes >= s.maxMemoryBytes && !s.cleanup(now) {
		s.currentMemoryBytes -= delta
		for f, b := range backups {
			if b.existed {
				h[f] = b.val
			} else {
				delete(h, f)
			}
		}
		return 0, ErrOutOfMemory()
	}
	return inserted, nil
}

// HDel removes the named fields from the Hash at key, deleting the whole key
// when its field count reaches zero. Fails with ErrWrongType against a
// non-Hash value; a missing key is simply a zero-count success.
func (s *Shard) HDel(key []byte, fields []string) (int, error) {
	k := string(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	sv, exists := s.primary[k]
	if !exists {
		return 0, nil
	}
	if sv.value.Kind() != KindHash {
		return 0, ErrWrongType()
	}
	preSize := recordSize(len(k), sv.value)
	deleted, remaining, err := sv.value.DeleteFields(fields)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		s.removeKeyLocked(k)
		return deleted, nil
	}
	postSize := recordSize(len(k), sv.value)
	s.currentMemoryBytes += postSize - preSize
	return deleted, nil
}
