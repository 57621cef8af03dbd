// Package bench provides reproducible micro-benchmarks for pkg/store's
// keyspace engine. Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Keys are string-keyed (the wire protocol carries bulk strings, not fixed
// integers), values are 64-byte strings — large enough to matter, small
// enough to keep the dataset in cache.
//
// We measure:
//  1. Set         — write-only workload
//  2. Get         — read-only workload (after warm-up)
//  3. GetParallel — highly concurrent reads (b.RunParallel)
//  4. HSet        — hash-field merge workload
//
// NOTE: Unit tests live alongside each package; this file is only for
// performance.
//
// © 2025 rescache authors. MIT License.
package bench

import (
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/sergz72/rescache/pkg/store"
)

const (
	capBytes = 64 << 20 // 64 MiB cap per keyspace
	shards   = 16
	numKeys  = 1 << 16
)

var value64 = make([]byte, 64)

func newTestKeyspace() *store.Keyspace {
	dir, err := store.NewDirectory(store.WithMaxMemory(capBytes), store.WithShardCount(shards))
	if err != nil {
		panic(err)
	}
	ks, err := dir.Select("bench")
	if err != nil {
		panic(err)
	}
	return ks
}

// dataset reused across benchmarks to avoid reallocating large slices.
var ds = func() [][]byte {
	arr := make([][]byte, numKeys)
	r := rand.New(rand.NewSource(42))
	for i := range arr {
		arr[i] = []byte(fmt.Sprintf("key-%d", r.Uint64()))
	}
	return arr
}()

func BenchmarkSet(b *testing.B) {
	ks := newTestKeyspace()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(numKeys-1)]
		sh := ks.ShardFor(key)
		_ = sh.Set(key, store.NewStr(value64), nil)
	}
}

func BenchmarkGet(b *testing.B) {
	ks := newTestKeyspace()
	for _, k := range ds {
		sh := ks.ShardFor(k)
		_ = sh.Set(k, store.NewStr(value64), nil)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(numKeys-1)]
		sh := ks.ShardFor(k)
		sh.Get(k)
	}
}

func BenchmarkGetParallel(b *testing.B) {
	ks := newTestKeyspace()
	for _, k := range ds {
		sh := ks.ShardFor(k)
		_ = sh.Set(k, store.NewStr(value64), nil)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(numKeys)
		for pb.Next() {
			idx = (idx + 1) & (numKeys - 1)
			k := ds[idx]
			ks.ShardFor(k).Get(k)
		}
	})
}

func BenchmarkHSet(b *testing.B) {
	ks := newTestKeyspace()
	fields := map[string][]byte{"f1": value64, "f2": value64}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(numKeys-1)]
		sh := ks.ShardFor(key)
		_, _ = sh.HSet(key, fields)
	}
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
