package store

// config.go defines the functional-options Config object accepted by
// NewDirectory. It follows the same shape as the teacher's config[K,V] +
// Option[K,V] pattern, but the store is not generic: keys are always []byte
// and values are always ValueHolder, so the options collapse to plain
// (non-generic) funcs.
//
// © 2025 rescache authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sergz72/rescache/internal/hashselect"
)

// Option configures a Config.
type Option func(*Config)

// Config bundles every knob that influences directory/keyspace/shard
// behaviour. All fields are set at construction time; there is no live
// reconfiguration.
type Config struct {
	// MaxMemoryBytes is the per-keyspace memory ceiling (spec.md §3's
	// max_memory, the CLI's -m/--max-memory).
	MaxMemoryBytes int64

	// ShardCount is the fixed number of shards per keyspace (the CLI's
	// --km).
	ShardCount int

	// HashSelectorName names the key->shard function (the CLI's --hb):
	// "zero", "xor", "xor256", "sum", "djb2", or "sdbm".
	HashSelectorName string

	// MaxOpenDatabases bounds how many keyspaces the directory keeps
	// resident at once (the CLI's --max-open-databases). Zero means
	// unbounded.
	MaxOpenDatabases int

	// CleanupUsingLRU selects the out-of-memory admission policy: when
	// true a shard evicts its least-recently-accessed record to make
	// room; when false Set fails with ErrOutOfMemory instead.
	CleanupUsingLRU bool

	// DataDir is the Badger persistence directory consulted by SAVE and
	// LOADDB. Empty disables persistence.
	DataDir string

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

func defaultConfig() *Config {
	return &Config{
		MaxMemoryBytes:   64 << 20,
		ShardCount:       16,
		HashSelectorName: "sum",
		MaxOpenDatabases: 0,
		CleanupUsingLRU:  false,
		Logger:           zap.NewNop(),
	}
}

// WithMaxMemory sets the per-keyspace memory ceiling in bytes.
func WithMaxMemory(n int64) Option {
	return func(c *Config) { c.MaxMemoryBytes = n }
}

// WithShardCount sets the fixed shard count per keyspace.
func WithShardCount(n int) Option {
	return func(c *Config) { c.ShardCount = n }
}

// WithHashSelector names the key->shard hash function.
func WithHashSelector(name string) Option {
	return func(c *Config) { c.HashSelectorName = name }
}

// WithMaxOpenDatabases bounds the directory's resident keyspace count.
func WithMaxOpenDatabases(n int) Option {
	return func(c *Config) { c.MaxOpenDatabases = n }
}

// WithCleanupUsingLRU enables LRU eviction on out-of-memory admission,
// instead of failing the write.
func WithCleanupUsingLRU(enabled bool) Option {
	return func(c *Config) { c.CleanupUsingLRU = enabled }
}

// WithDataDir sets the Badger persistence directory used by SAVE/LOADDB.
func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

// WithLogger plugs an external zap.Logger. The store never logs on the hot
// path; only lifecycle events (database creation and eviction) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = reg }
}

// applyOptions copies user-supplied options into cfg and validates
// invariants, including that ShardCount is compatible with the chosen hash
// selector (delegated to hashselect.New).
func applyOptions(opts []Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.MaxMemoryBytes <= 0 {
		return nil, ErrInvalidInput("max memory must be > 0")
	}
	if cfg.ShardCount <= 0 {
		return nil, ErrInvalidInput("shard count must be > 0")
	}
	if cfg.MaxOpenDatabases < 0 {
		return nil, ErrInvalidInput("max open databases must be >= 0")
	}
	if _, err := hashselect.New(cfg.HashSelectorName, cfg.ShardCount); err != nil {
		return nil, ErrInvalidInput(err.Error())
	}
	return cfg, nil
}
