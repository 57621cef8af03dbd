package main

// flags.go parses the CLI surface SPEC_FULL.md §6 makes concrete: server
// mode by default, or client/benchmark mode when -c/-b is given.
//
// © 2025 rescache authors. MIT License.

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type options struct {
	port              int
	maxMemory         int64
	shardCount        int
	hashSelector      string
	maxOpenDatabases  int
	dataDir           string
	verbose           bool
	debugAddr         string
	host              string

	clientMode bool
	clientArgs []string

	benchMode       bool
	benchKeys       int
	benchRequests   int
	benchThreads    int
	benchExpireMs   int
	benchMix        string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("rescache", flag.ContinueOnError)

	opts := &options{}
	fs.IntVar(&opts.port, "p", 6379, "listen port")
	fs.IntVar(&opts.port, "port", 6379, "listen port")
	var maxMemory string
	fs.StringVar(&maxMemory, "m", "1G", "per-keyspace memory ceiling (K/M/G suffix)")
	fs.StringVar(&maxMemory, "max-memory", "1G", "per-keyspace memory ceiling (K/M/G suffix)")
	fs.IntVar(&opts.shardCount, "km", 256, "shards per keyspace")
	fs.StringVar(&opts.hashSelector, "hb", "sum", "hash selector: zero, xor, xor256, sum, djb2, sdbm")
	fs.IntVar(&opts.maxOpenDatabases, "max-open-databases", 16, "resident database cap (0 = unbounded)")
	fs.StringVar(&opts.dataDir, "data-dir", "./rescache-data", "Badger directory backing SAVE/LOADDB")
	fs.BoolVar(&opts.verbose, "v", false, "verbose (debug-level) logging")
	fs.BoolVar(&opts.verbose, "verbose", false, "verbose (debug-level) logging")
	fs.StringVar(&opts.debugAddr, "debug-addr", "", "host:port for the optional /metrics and /debug/rescache/snapshot listener")
	fs.StringVar(&opts.host, "host", "127.0.0.1", "host to connect to in client/benchmark mode")

	fs.BoolVar(&opts.clientMode, "c", false, "client mode: send one command and print the reply")
	fs.BoolVar(&opts.clientMode, "client", false, "client mode: send one command and print the reply")

	fs.BoolVar(&opts.benchMode, "b", false, "benchmark mode")
	fs.BoolVar(&opts.benchMode, "bench", false, "benchmark mode")
	fs.IntVar(&opts.benchKeys, "bench-keys", 10000, "distinct keys to cycle through")
	fs.IntVar(&opts.benchRequests, "bench-requests", 100000, "requests per worker")
	fs.IntVar(&opts.benchThreads, "bench-threads", 4, "concurrent benchmark connections")
	fs.IntVar(&opts.benchExpireMs, "bench-expire-ms", 0, "TTL in ms applied to SETPX benchmark writes (0 = no TTL)")
	fs.StringVar(&opts.benchMix, "bench-mix", "1:1:1:1", "get:set:setpx:ping ratio")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	n, err := parseByteSize(maxMemory)
	if err != nil {
		return nil, fmt.Errorf("invalid -m/--max-memory %q: %w", maxMemory, err)
	}
	opts.maxMemory = n

	opts.clientArgs = fs.Args()
	return opts, nil
}

// parseByteSize parses a decimal integer with an optional K/M/G suffix
// (case-insensitive, binary multiples) into a byte count.
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch last := s[len(s)-1]; last {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be > 0")
	}
	return n * mult, nil
}

// parseBenchMix parses "get:set:setpx:ping" into four non-negative weights.
func parseBenchMix(s string) ([4]int, error) {
	var weights [4]int
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return weights, fmt.Errorf("bench-mix must have 4 colon-separated weights, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return weights, fmt.Errorf("bench-mix weight %q must be a non-negative integer", p)
		}
		weights[i] = n
	}
	return weights, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "rescache: "+format+"\n", args...)
	os.Exit(1)
}
