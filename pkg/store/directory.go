package store

// directory.go implements C5, the CommonData-equivalent: a process-wide
// registry of named keyspaces with an LRU-bounded cap on how many stay
// resident at once. Concurrent first-touch creation of the same name is
// de-duplicated with singleflight the way the teacher's loader.go dedupes
// concurrent cache misses — repurposed here from value-loading to
// keyspace-materialization.
//
// © 2025 rescache authors. MIT License.

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Directory is the top-level entry point into the store: a name-addressed
// registry of keyspaces.
type Directory struct {
	cfg *Config
	clk clockSource

	mu        sync.RWMutex
	keyspaces map[string]*Keyspace

	accessMu    sync.Mutex
	accessIndex map[int64]map[string]struct{}

	creating singleflight.Group

	logger  *zap.Logger
	metrics metricsSink
	persist *persistence
}

// NewDirectory constructs an empty directory per the supplied options.
func NewDirectory(opts ...Option) (*Directory, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newDirectoryWithClock(cfg, newClock())
}

// newDirectoryWithClock is the shared constructor path; tests use it with a
// manualClock to drive deterministic LRU-admission scenarios instead of
// racing wall-clock resolution.
func newDirectoryWithClock(cfg *Config, clk clockSource) (*Directory, error) {
	d := &Directory{
		cfg:         cfg,
		clk:         clk,
		keyspaces:   make(map[string]*Keyspace),
		accessIndex: make(map[int64]map[string]struct{}),
		logger:      cfg.Logger,
		metrics:     newMetricsSink(cfg.Registry),
	}
	if cfg.DataDir != "" {
		p, err := openPersistence(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		d.persist = p
	}
	return d, nil
}

// Close releases resources held by the directory (the Badger handle, if
// persistence is enabled).
func (d *Directory) Close() error {
	if d.persist != nil {
		return d.persist.close()
	}
	return nil
}

// Select returns the named keyspace, lazily materializing it on first touch.
// Concurrent callers racing to create the same name block on one another via
// singleflight rather than each building a throwaway keyspace.
func (d *Directory) Select(name string) (*Keyspace, error) {
	d.mu.RLock()
	ks, ok := d.keyspaces[name]
	d.mu.RUnlock()
	if ok {
		return ks, nil
	}

	v, err, _ := d.creating.Do(name, func() (interface{}, error) {
		return d.getOrCreateLocked(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Keyspace), nil
}

// Create inserts a brand-new keyspace named name, failing with
// ErrAlreadyExists if one is already registered.
func (d *Directory) Create(name string) (*Keyspace, error) {
	d.mu.RLock()
	_, exists := d.keyspaces[name]
	d.mu.RUnlock()
	if exists {
		return nil, ErrAlreadyExists()
	}

	v, err, _ := d.creating.Do(name, func() (interface{}, error) {
		d.mu.RLock()
		_, exists := d.keyspaces[name]
		d.mu.RUnlock()
		if exists {
			return nil, ErrAlreadyExists()
		}
		return d.getOrCreateLocked(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Keyspace), nil
}

// Load materializes name from persisted storage if present, falling back to
// a fresh empty keyspace otherwise — the same lazy-creation path as Select,
// with a persistence read attempted first.
func (d *Directory) Load(name string) (*Keyspace, error) {
	d.mu.RLock()
	ks, ok := d.keyspaces[name]
	d.mu.RUnlock()
	if ok {
		return ks, nil
	}
	v, err, _ := d.creating.Do(name, func() (interface{}, error) {
		return d.getOrCreateLocked(name)
	})
	if err != nil {
		return nil, err
	}
	ks = v.(*Keyspace)
	if d.persist != nil {
		if err := d.persist.load(name, ks); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

// getOrCreateLocked builds and registers a keyspace named name, evicting
// resident databases first if the cap would otherwise be exceeded. Callers
// must invoke it only from inside the singleflight group for name.
func (d *Directory) getOrCreateLocked(name string) (*Keyspace, error) {
	d.mu.RLock()
	if ks, ok := d.keyspaces[name]; ok {
		d.mu.RUnlock()
		return ks, nil
	}
	d.mu.RUnlock()

	if d.cfg.MaxOpenDatabases > 0 {
		d.evictUntilUnderCap(d.cfg.MaxOpenDatabases - 1)
	}

	ks, err := NewKeyspace(d.cfg.ShardCount, d.cfg.MaxMemoryBytes, d.cfg.HashSelectorName, d.cfg.CleanupUsingLRU, d.clk)
	if err != nil {
		return nil, err
	}
	now := d.clk.nowMs()
	ks.Touch(now)

	d.mu.Lock()
	d.keyspaces[name] = ks
	d.metrics.setResidentDatabases(len(d.keyspaces))
	d.mu.Unlock()

	d.accessMu.Lock()
	d.insertAccessLocked(now, name)
	d.accessMu.Unlock()

	d.logger.Debug("keyspace created", zap.String("db", name))
	return ks, nil
}

// Touch records name as most-recently-accessed, migrating it across the
// access-time index. Command handlers call this after every successful
// keyspace mutation or read (§4.5, §4.7).
func (d *Directory) Touch(name string) {
	d.mu.RLock()
	ks, ok := d.keyspaces[name]
	d.mu.RUnlock()
	if !ok {
		return
	}
	old := ks.LastAccessMs()
	now := d.clk.nowMs()
	if old == now {
		return
	}
	ks.Touch(now)

	d.accessMu.Lock()
	d.removeAccessLocked(old, name)
	d.insertAccessLocked(now, name)
	d.accessMu.Unlock()
}

// RecordHit/RecordMiss/RecordExpired/RecordOutOfMemory let pkg/dispatch feed
// per-database outcome counters into whichever metricsSink was configured,
// without exposing the sink type itself outside this package.
func (d *Directory) RecordHit(db string)         { d.metrics.incHit(db) }
func (d *Directory) RecordMiss(db string)        { d.metrics.incMiss(db) }
func (d *Directory) RecordExpired(db string)     { d.metrics.incExpired(db) }
func (d *Directory) RecordOutOfMemory(db string) { d.metrics.incOutOfMemory(db) }

// Save persists the named keyspace immediately via the configured Badger
// directory. Returns an error if persistence was not enabled.
func (d *Directory) Save(name string) error {
	if d.persist == nil {
		return ErrInvalidInput("persistence not enabled: no data directory configured")
	}
	d.mu.RLock()
	ks, ok := d.keyspaces[name]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := d.persist.save(name, ks); err != nil {
		return err
	}
	ks.ClearDirty()
	return nil
}

// DatabaseStats reports one resident database's entry count and accounted
// memory usage, for the /debug/rescache/snapshot endpoint.
type DatabaseStats struct {
	Entries int
	Bytes   int64
}

// Snapshot returns per-database stats for every currently resident keyspace.
func (d *Directory) Snapshot() map[string]DatabaseStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]DatabaseStats, len(d.keyspaces))
	for name, ks := range d.keyspaces {
		out[name] = DatabaseStats{Entries: ks.Size(), Bytes: ks.MemoryBytes()}
	}
	return out
}

// FlushAll flushes every resident keyspace and touches each afterward.
func (d *Directory) FlushAll() {
	d.mu.RLock()
	names := make([]string, 0, len(d.keyspaces))
	for name := range d.keyspaces {
		names = append(names, name)
	}
	d.mu.RUnlock()

	for _, name := range names {
		d.mu.RLock()
		ks := d.keyspaces[name]
		d.mu.RUnlock()
		ks.FlushAll()
		d.Touch(name)
	}
}

// evictUntilUnderCap evicts whole access-time buckets, lowest first, until
// at most maxResident keyspaces remain. Dirty keyspaces are persisted
// before being dropped when persistence is enabled (§9).
func (d *Directory) evictUntilUnderCap(maxResident int) {
	for {
		d.mu.RLock()
		resident := len(d.keyspaces)
		d.mu.RUnlock()
		if resident <= maxResident {
			return
		}

		d.accessMu.Lock()
		var lowest int64
		found := false
		for ts := range d.accessIndex {
			if !found || ts < lowest {
				lowest = ts
				found = true
			}
		}
		if !found {
			d.accessMu.Unlock()
			return
		}
		victims := make([]string, 0, len(d.accessIndex[lowest]))
		for name := range d.accessIndex[lowest] {
			victims = append(victims, name)
		}
		delete(d.accessIndex, lowest)
		d.accessMu.Unlock()

		d.mu.Lock()
		for _, name := range victims {
			ks, ok := d.keyspaces[name]
			if !ok {
				continue
			}
			if d.persist != nil && ks.Dirty() {
				_ = d.persist.save(name, ks)
			}
			delete(d.keyspaces, name)
			d.metrics.incDatabaseEvicted()
			d.logger.Debug("keyspace evicted", zap.String("db", name))
		}
		d.metrics.setResidentDatabases(len(d.keyspaces))
		d.mu.Unlock()
	}
}

func (d *Directory) insertAccessLocked(ts int64, name string) {
	bucket, ok := d.accessIndex[ts]
	if !ok {
		bucket = make(map[string]struct{})
		d.accessIndex[ts] = bucket
	}
	bucket[name] = struct{}{}
}

func (d *Directory) removeAccessLocked(ts int64, name string) {
	bucket, ok := d.accessIndex[ts]
	if !ok {
		return
	}
	delete(bucket, name)
	if len(bucket) == 0 {
		delete(d.accessIndex, ts)
	}
}
