package relay

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/topicgate/topicgate/internal/bus"
)

var registryHeader = []string{"chat_id", "kind", "title", "username", "first_seen"}

// Registry keeps an append-only CSV of every source chat ever seen,
// one row per chat at first sighting. It exists for operators browsing
// which sources reached the relay, including ones still paused.
type Registry struct {
	path string

	mu   sync.Mutex
	seen map[int64]struct{}
}

// NewRegistry opens the registry at path, loading the already-recorded
// chat ids.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, seen: make(map[int64]struct{})}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open chat registry: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read chat registry: %w", err)
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			// Header or damaged row.
			continue
		}
		r.seen[id] = struct{}{}
	}
	return r, nil
}

// Observe records msg's chat on first sighting. Repeat sightings are
// free no-ops.
func (r *Registry) Observe(msg *bus.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[msg.ChatID]; ok {
		return nil
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open chat registry for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		if err := w.Write(registryHeader); err != nil {
			return fmt.Errorf("write registry header: %w", err)
		}
	}
	row := []string{
		strconv.FormatInt(msg.ChatID, 10),
		string(msg.ChatKind),
		msg.ChatTitle,
		msg.Username,
		time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append registry row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush registry: %w", err)
	}

	r.seen[msg.ChatID] = struct{}{}
	return nil
}

// Seen reports whether chatID has been recorded.
func (r *Registry) Seen(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[chatID]
	return ok
}

// Size returns the number of recorded chats.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
