package relay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/topicgate/topicgate/internal/bus"
)

func TestRegistryRecordsFirstSightingOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats_seen.csv")
	r, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}

	msg := &bus.InboundMessage{ChatID: 100, ChatKind: bus.ChatGroup, ChatTitle: "Ops", Username: "opsgroup"}
	if err := r.Observe(msg); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := r.Observe(msg); err != nil {
		t.Fatalf("second observe: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + one row, got %d lines:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[1], "100,group,Ops,opsgroup,") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestRegistryReloadsSeenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats_seen.csv")
	r, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := r.Observe(&bus.InboundMessage{ChatID: 100, ChatKind: bus.ChatGroup, ChatTitle: "Ops"}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	reopened, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Seen(100) {
		t.Fatalf("seen set not reloaded from disk")
	}
	if err := reopened.Observe(&bus.InboundMessage{ChatID: 100, ChatKind: bus.ChatGroup, ChatTitle: "Ops"}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(strings.TrimSpace(string(data)), "\n"); n != 1 {
		t.Fatalf("chat recorded twice:\n%s", data)
	}
	if reopened.Size() != 1 {
		t.Fatalf("expected one chat, got %d", reopened.Size())
	}
}
