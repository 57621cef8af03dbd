package dispatch

// dispatch_test.go covers the end-to-end request/reply scenarios spec.md §8
// calls out explicitly, driving pkg/resp.Parse straight into Session.Dispatch
// the way cmd/rescache's connection loop will.

import (
	"testing"

	"github.com/sergz72/rescache/pkg/resp"
	"github.com/sergz72/rescache/pkg/store"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	dir, err := store.NewDirectory(store.WithShardCount(4), store.WithMaxMemory(1<<20))
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	s, err := NewSession(dir)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func run(t *testing.T, s *Session, line string) string {
	t.Helper()
	tokens, _, err := resp.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	if len(tokens) != 1 {
		t.Fatalf("Parse(%q): got %d tokens, want 1", line, len(tokens))
	}
	return string(s.Dispatch(tokens[0], nil))
}

func TestPingRoundTrip(t *testing.T) {
	s := newTestSession(t)
	if got := run(t, s, "PING\r\n"); got != "+PONG\r\n" {
		t.Fatalf("got %q", got)
	}
	if got := run(t, s, "*1\r\n$4\r\nPING\r\n"); got != "+PONG\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestSession(t)
	if got := run(t, s, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Fatalf("SET: got %q", got)
	}
	if got := run(t, s, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$3\r\nbar\r\n" {
		t.Fatalf("GET: got %q", got)
	}
}

func TestSetThenDelThenGetReturnsNull(t *testing.T) {
	s := newTestSession(t)
	// SET then DEL then GET returns a null bulk string, the observable
	// equivalent of "gone".
	run(t, s, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	if got := run(t, s, "*2\r\n$3\r\nDEL\r\n$1\r\nk\r\n"); got != ":1\r\n" {
		t.Fatalf("DEL: got %q", got)
	}
	if got := run(t, s, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"); got != "$-1\r\n" {
		t.Fatalf("GET after DEL: got %q", got)
	}
}

func TestSetRejectsNonPositiveTTL(t *testing.T) {
	s := newTestSession(t)
	// EX with no value at all.
	got := run(t, s, "*4\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nEX\r\n")
	if got != string(resp.ReplyInvalidCommand) {
		t.Fatalf("got %q", got)
	}
	// EX 0: a TTL must be > 0.
	got = run(t, s, "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nEX\r\n$1\r\n0\r\n")
	if got != string(resp.ReplyInvalidCommand) {
		t.Fatalf("EX 0: got %q", got)
	}
}

func TestHSetHGetRoundTrip(t *testing.T) {
	s := newTestSession(t)
	got := run(t, s, "*4\r\n$4\r\nHSET\r\n$1\r\nh\r\n$1\r\nf\r\n$1\r\nv\r\n")
	if got != ":1\r\n" {
		t.Fatalf("HSET: got %q", got)
	}
	got = run(t, s, "*3\r\n$4\r\nHGET\r\n$1\r\nh\r\n$1\r\nf\r\n")
	if got != "$1\r\nv\r\n" {
		t.Fatalf("HGET: got %q", got)
	}
}

func TestHSetThenHDelEmptiesKey(t *testing.T) {
	s := newTestSession(t)
	run(t, s, "*4\r\n$4\r\nHSET\r\n$1\r\nh\r\n$1\r\nf\r\n$1\r\nv\r\n")
	if got := run(t, s, "*3\r\n$4\r\nHDEL\r\n$1\r\nh\r\n$1\r\nf\r\n"); got != ":1\r\n" {
		t.Fatalf("HDEL: got %q", got)
	}
	got := run(t, s, "*2\r\n$7\r\nHGETALL\r\n$1\r\nh\r\n")
	if got != string(resp.ReplyNullArray) {
		t.Fatalf("HGETALL after HDEL: got %q", got)
	}
}

func TestSetThenHSetIsWrongType(t *testing.T) {
	s := newTestSession(t)
	run(t, s, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	got := run(t, s, "*4\r\n$4\r\nHSET\r\n$1\r\nk\r\n$1\r\nf\r\n$1\r\nv\r\n")
	if got != store.ErrWrongType().Payload {
		t.Fatalf("got %q", got)
	}
}

func TestConfigGetSave(t *testing.T) {
	s := newTestSession(t)
	got := run(t, s, "*3\r\n$6\r\nCONFIG\r\n$3\r\nGET\r\n$4\r\nsave\r\n")
	want := "*2\r\n$4\r\nsave\r\n$0\r\n\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSelectOfNewNameCreatesSilently(t *testing.T) {
	s := newTestSession(t)
	if got := run(t, s, "*2\r\n$6\r\nSELECT\r\n$5\r\nother\r\n"); got != "+OK\r\n" {
		t.Fatalf("SELECT: got %q", got)
	}
	if s.DBName() != "other" {
		t.Fatalf("DBName = %q, want other", s.DBName())
	}
}

func TestCreateDBFailsOnDuplicate(t *testing.T) {
	s := newTestSession(t)
	run(t, s, "*2\r\n$8\r\nCREATEDB\r\n$2\r\nd1\r\n")
	got := run(t, s, "*2\r\n$8\r\nCREATEDB\r\n$2\r\nd1\r\n")
	if got != store.ErrAlreadyExists().Payload {
		t.Fatalf("got %q", got)
	}
}

func TestUnknownCommandIsInvalid(t *testing.T) {
	s := newTestSession(t)
	got := run(t, s, "*1\r\n$4\r\nNOPE\r\n")
	if got != string(resp.ReplyInvalidCommand) {
		t.Fatalf("got %q", got)
	}
}

func TestDBSizeTracksMutations(t *testing.T) {
	s := newTestSession(t)
	run(t, s, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	got := run(t, s, "*1\r\n$6\r\nDBSIZE\r\n")
	if got != ":1\r\n" {
		t.Fatalf("got %q", got)
	}
}
