package sqlitesink

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rkorstad/taintgate/internal/audit"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "events.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQuery(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 3; i++ {
		err := s.Record(audit.Event{
			ID:        fmt.Sprintf("ev-%d", i),
			Timestamp: fmt.Sprintf("2026-08-29T10:00:0%d.000Z", i),
			Kind:      audit.KindBlocked,
			Action:    "shell.exec",
			Parameter: "cmd",
			Level:     "untrusted",
			Missing:   []string{"shell_meta"},
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if err := s.Record(audit.Event{
		ID:        "ev-prop",
		Timestamp: "2026-08-29T10:01:00.000Z",
		Kind:      audit.KindPropagated,
		Action:    "file.read",
		FromLevel: "trusted",
		ToLevel:   "derived",
		Chain:     []string{"file.read"},
	}); err != nil {
		t.Fatal(err)
	}

	blocked, err := s.ByKind(audit.KindBlocked, 10)
	if err != nil {
		t.Fatalf("ByKind: %v", err)
	}
	if len(blocked) != 3 {
		t.Errorf("blocked events = %d, want 3", len(blocked))
	}
	if blocked[0].ID != "ev-2" {
		t.Errorf("newest first ordering broken: first id = %s", blocked[0].ID)
	}
	if len(blocked[0].Missing) != 1 || blocked[0].Missing[0] != "shell_meta" {
		t.Errorf("missing round-trip = %v", blocked[0].Missing)
	}

	byAction, err := s.ByAction("file.read", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byAction) != 1 || byAction[0].Kind != audit.KindPropagated {
		t.Errorf("ByAction = %+v", byAction)
	}
	if len(byAction[0].Chain) != 1 || byAction[0].Chain[0] != "file.read" {
		t.Errorf("chain round-trip = %v", byAction[0].Chain)
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "ev-prop" {
		t.Errorf("Recent = %+v", recent)
	}
}

func TestCountByKind(t *testing.T) {
	s := openStore(t)

	s.Record(audit.Event{ID: "1", Timestamp: "t1", Kind: audit.KindBlocked})
	s.Record(audit.Event{ID: "2", Timestamp: "t2", Kind: audit.KindBlocked})
	s.Record(audit.Event{ID: "3", Timestamp: "t3", Kind: audit.KindReduced})

	counts, err := s.CountByKind()
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if counts[audit.KindBlocked] != 2 || counts[audit.KindReduced] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openStore(t)

	ev := audit.Event{ID: "same", Timestamp: "t", Kind: audit.KindBlocked}
	if err := s.Record(ev); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ev); err == nil {
		t.Error("duplicate event id accepted")
	}
}
