package hashselect

import "testing"

func TestNewZeroForSingleShard(t *testing.T) {
	s, err := New("sum", 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != "zero" {
		t.Fatalf("expected zero selector for n=1, got %s", s.Name())
	}
	if idx := s.Hash([]byte("anything")); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
}

func TestXorRejectsOversizedN(t *testing.T) {
	if _, err := New("xor", 257); err == nil {
		t.Fatal("expected error for xor with n > 256")
	}
}

func TestXor256RequiresExactly256(t *testing.T) {
	if _, err := New("xor256", 128); err == nil {
		t.Fatal("expected error for xor256 with n != 256")
	}
	s, err := New("xor256", 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx := s.Hash([]byte{0x01, 0x02}); idx != 0x03 {
		t.Fatalf("expected xor256 of 0x01^0x02 = 3, got %d", idx)
	}
}

func TestSelectorsStayInRange(t *testing.T) {
	names := []string{"xor", "sum", "djb2", "sdbm"}
	keys := [][]byte{[]byte("a"), []byte("foo"), []byte(""), []byte("a-much-longer-key-value-for-hashing")}
	for _, name := range names {
		s, err := New(name, 16)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		for _, k := range keys {
			idx := s.Hash(k)
			if idx < 0 || idx >= 16 {
				t.Fatalf("%s: index %d out of range [0,16) for key %q", name, idx, k)
			}
		}
	}
}

func TestUnknownSelectorErrors(t *testing.T) {
	if _, err := New("bogus", 8); err == nil {
		t.Fatal("expected error for unknown selector name")
	}
}

func TestDeterministic(t *testing.T) {
	s, err := New("djb2", 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := []byte("stable-key")
	first := s.Hash(key)
	for i := 0; i < 100; i++ {
		if got := s.Hash(key); got != first {
			t.Fatalf("hash not stable across calls: %d vs %d", got, first)
		}
	}
}
