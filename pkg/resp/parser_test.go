package resp

import "testing"

func TestParsePingArray(t *testing.T) {
	buf := []byte("*1\r\n$4\r\nPING\r\n")
	tokens, consumed, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if len(tokens) != 1 || tokens[0].Kind != KindArray || len(tokens[0].Array) != 1 {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if string(tokens[0].Array[0].Bytes) != "PING" {
		t.Fatalf("got %q", tokens[0].Array[0].Bytes)
	}
}

func TestParseInlinePing(t *testing.T) {
	buf := []byte("PING\r\n")
	tokens, consumed, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if len(tokens) != 1 || tokens[0].Kind != KindInline || string(tokens[0].Bytes) != "PING" {
		t.Fatalf("unexpected token: %+v", tokens[0])
	}
}

func TestParseMultipleBackToBackRequests(t *testing.T) {
	buf := []byte("PING\r\n*3\r\n$6\r\nCONFIG\r\n$3\r\nGET\r\n$4\r\nsave\r\n")
	tokens, consumed, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
}

func TestParseNullBulkString(t *testing.T) {
	tokens, _, err := Parse([]byte("$-1\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tokens[0].Kind != KindNullString {
		t.Fatalf("kind = %v, want KindNullString", tokens[0].Kind)
	}
}

func TestParseNullArray(t *testing.T) {
	tokens, _, err := Parse([]byte("*-1\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tokens[0].Kind != KindNullArray {
		t.Fatalf("kind = %v, want KindNullArray", tokens[0].Kind)
	}
}

func TestParseIncompleteBulkStringAsksForMoreBytes(t *testing.T) {
	// Length prefix says 3 bytes, only 2 buffered so far.
	buf := []byte("*1\r\n$3\r\nfo")
	tokens, consumed, err := Parse(buf)
	if err != ErrIncomplete {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no complete tokens yet, got %d", len(tokens))
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0 (nothing complete)", consumed)
	}
}

func TestParseIncompleteThenComplete(t *testing.T) {
	partial := []byte("*1\r\n$3\r\nfo")
	_, _, err := Parse(partial)
	if err != ErrIncomplete {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	full := append(partial, 'o', '\r', '\n')
	tokens, consumed, err := Parse(full)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != len(full) {
		t.Fatalf("consumed = %d, want %d", consumed, len(full))
	}
	if string(tokens[0].Array[0].Bytes) != "foo" {
		t.Fatalf("got %q", tokens[0].Array[0].Bytes)
	}
}

func TestParseNegativeLengthOtherThanMinusOneIsMalformed(t *testing.T) {
	_, _, err := Parse([]byte("$-2\r\nxx\r\n"))
	if err != ErrInvalidCommand {
		t.Fatalf("err = %v, want ErrInvalidCommand", err)
	}
}

func TestParseKeepsCompletedPrefixAcrossIncompleteTail(t *testing.T) {
	buf := []byte("PING\r\n*1\r\n$4\r\nPON")
	tokens, consumed, err := Parse(buf)
	if err != ErrIncomplete {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if len(tokens) != 1 || tokens[0].Kind != KindInline {
		t.Fatalf("expected the first complete token to survive, got %+v", tokens)
	}
	if consumed != len("PING\r\n") {
		t.Fatalf("consumed = %d, want %d", consumed, len("PING\r\n"))
	}
}
