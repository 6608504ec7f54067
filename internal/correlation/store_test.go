package correlation

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := Record{SourceChatID: 100, SourceMessageID: 1, DestMessageID: 555, DestTopicID: 42}
	if err := s.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(100, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected record")
	}
	if got.DestMessageID != 555 || got.DestTopicID != 42 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be stamped")
	}
}

func TestGetMissReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(1, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestPutIsIdempotentPerSourceMessage(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(Record{SourceChatID: 100, SourceMessageID: 1, DestMessageID: 10, DestTopicID: 5}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.Put(Record{SourceChatID: 100, SourceMessageID: 1, DestMessageID: 99, DestTopicID: 9}); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, err := s.Get(100, 1)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.DestMessageID != 10 {
		t.Fatalf("first write should win, got %+v", got)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
}

func TestSameMessageIDDifferentChats(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(Record{SourceChatID: 100, SourceMessageID: 1, DestMessageID: 10, DestTopicID: 5}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(Record{SourceChatID: 200, SourceMessageID: 1, DestMessageID: 20, DestTopicID: 6}); err != nil {
		t.Fatalf("put: %v", err)
	}
	a, _ := s.Get(100, 1)
	b, _ := s.Get(200, 1)
	if a == nil || b == nil || a.DestMessageID == b.DestMessageID {
		t.Fatalf("composite key not honored: %+v %+v", a, b)
	}
}

func TestPruneOlderThan(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(Record{SourceChatID: 1, SourceMessageID: 1, DestMessageID: 2, DestTopicID: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Backdate the row past the horizon.
	if _, err := s.db.Exec(`UPDATE correlations SET created_at = datetime('now', '-49 hours')`); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := s.Put(Record{SourceChatID: 1, SourceMessageID: 2, DestMessageID: 4, DestTopicID: 3}); err != nil {
		t.Fatalf("put fresh: %v", err)
	}

	n, err := s.PruneOlderThan(48 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
	if got, _ := s.Get(1, 1); got != nil {
		t.Fatalf("expired record survived prune")
	}
	if got, _ := s.Get(1, 2); got == nil {
		t.Fatalf("fresh record was pruned")
	}
}
