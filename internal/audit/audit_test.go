package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	l := openTestLog(t)
	epoch := [32]byte{1, 2, 3}
	rec := Record{Time: time.Unix(1000, 0).UTC(), Merit: 27.5, Accepted: true, Stale: false}

	if err := l.Record(epoch, 42, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := l.Get(epoch, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a record, got nil")
	}
	if got.Merit != rec.Merit || got.Accepted != rec.Accepted || got.Stale != rec.Stale {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
	if !got.Time.Equal(rec.Time) {
		t.Fatalf("got time %v, want %v", got.Time, rec.Time)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	l := openTestLog(t)
	got, err := l.Get([32]byte{9}, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an unrecorded key, got %+v", got)
	}
}

func TestRecordOverwritesSameKey(t *testing.T) {
	l := openTestLog(t)
	epoch := [32]byte{5}

	if err := l.Record(epoch, 1, Record{Accepted: false}); err != nil {
		t.Fatalf("Record (first): %v", err)
	}
	if err := l.Record(epoch, 1, Record{Accepted: true}); err != nil {
		t.Fatalf("Record (second): %v", err)
	}
	got, err := l.Get(epoch, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Accepted {
		t.Fatalf("expected the second write to win, got %+v", got)
	}
}

func TestCountReflectsDistinctKeys(t *testing.T) {
	l := openTestLog(t)
	epoch := [32]byte{7}
	for i := uint32(0); i < 3; i++ {
		if err := l.Record(epoch, i, Record{}); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}
	n, err := l.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("Count() = %d, want 3", n)
	}
}

func TestDistinctNoncesGetDistinctKeys(t *testing.T) {
	l := openTestLog(t)
	epoch := [32]byte{3}
	if err := l.Record(epoch, 1, Record{Merit: 1}); err != nil {
		t.Fatalf("Record(1): %v", err)
	}
	if err := l.Record(epoch, 2, Record{Merit: 2}); err != nil {
		t.Fatalf("Record(2): %v", err)
	}
	r1, _ := l.Get(epoch, 1)
	r2, _ := l.Get(epoch, 2)
	if r1.Merit != 1 || r2.Merit != 2 {
		t.Fatalf("expected distinct records per nonce, got r1=%+v r2=%+v", r1, r2)
	}
}
