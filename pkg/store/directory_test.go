package store

import "testing"

func newTestDirectory(t *testing.T, opts ...Option) *Directory {
	t.Helper()
	d, err := NewDirectory(append([]Option{WithShardCount(4), WithMaxMemory(1 << 20)}, opts...)...)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return d
}

func TestDirectorySelectLazilyCreates(t *testing.T) {
	d := newTestDirectory(t)
	ks, err := d.Select("mydb")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ks == nil {
		t.Fatal("expected a non-nil keyspace")
	}
	ks2, err := d.Select("mydb")
	if err != nil {
		t.Fatalf("Select (again): %v", err)
	}
	if ks != ks2 {
		t.Fatal("Select should return the same keyspace on repeated calls")
	}
}

func TestDirectoryCreateFailsOnDuplicate(t *testing.T) {
	d := newTestDirectory(t)
	if _, err := d.Create("db1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := d.Create("db1")
	if err == nil {
		t.Fatal("expected ErrAlreadyExists")
	}
	storeErr, ok := err.(*Error)
	if !ok || storeErr.Kind != KindAlreadyExists {
		t.Fatalf("err = %v, want KindAlreadyExists", err)
	}
}

func TestDirectoryEvictsLeastRecentlyAccessedOnCap(t *testing.T) {
	cfg, err := applyOptions([]Option{WithShardCount(4), WithMaxMemory(1 << 20), WithMaxOpenDatabases(2)})
	if err != nil {
		t.Fatalf("applyOptions: %v", err)
	}
	clk := &manualClock{ms: 1000}
	d, err := newDirectoryWithClock(cfg, clk)
	if err != nil {
		t.Fatalf("newDirectoryWithClock: %v", err)
	}

	if _, err := d.Select("a"); err != nil {
		t.Fatalf("Select a: %v", err)
	}
	clk.ms++
	if _, err := d.Select("b"); err != nil {
		t.Fatalf("Select b: %v", err)
	}
	clk.ms++
	// a and b now resident; admitting c must evict the older of the two.
	if _, err := d.Select("c"); err != nil {
		t.Fatalf("Select c: %v", err)
	}

	d.mu.RLock()
	_, aResident := d.keyspaces["a"]
	_, bResident := d.keyspaces["b"]
	_, cResident := d.keyspaces["c"]
	residentCount := len(d.keyspaces)
	d.mu.RUnlock()

	if residentCount != 2 {
		t.Fatalf("resident count = %d, want 2", residentCount)
	}
	if aResident {
		t.Fatal("expected the least-recently-accessed database (a) to be evicted")
	}
	if !bResident || !cResident {
		t.Fatalf("expected b and c resident, got b=%v c=%v", bResident, cResident)
	}
}

func TestDirectoryTouchMigratesAccessIndex(t *testing.T) {
	d := newTestDirectory(t)
	if _, err := d.Select("db"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	d.Touch("db")

	d.accessMu.Lock()
	count := 0
	for _, bucket := range d.accessIndex {
		count += len(bucket)
	}
	d.accessMu.Unlock()
	if count != 1 {
		t.Fatalf("access index holds %d entries, want 1", count)
	}
}
