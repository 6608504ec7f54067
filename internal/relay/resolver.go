package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/topicgate/topicgate/internal/bus"
	"github.com/topicgate/topicgate/internal/mapping"
	"github.com/topicgate/topicgate/internal/transport"
)

// maxTopicNameLen is the destination's topic title budget.
const maxTopicNameLen = 120

// ErrRelayDisabled means the source is known but gated off: either its
// Enabled flag is false or it is a first-seen private chat awaiting an
// administrative enable. Not a failure.
var ErrRelayDisabled = errors.New("relay: source disabled")

// Resolver maps a source key onto a live destination topic, creating or
// repairing the mapping as needed. It never returns a topic id the
// destination has confirmed dead, and never an id ≤ 1 (the destination's
// default stream).
type Resolver struct {
	forum transport.Forum
	store *mapping.Store
	cache *ValidityCache

	mu    sync.Mutex
	locks map[mapping.SourceKey]*sync.Mutex
}

// NewResolver creates a resolver over the given transport and store.
func NewResolver(forum transport.Forum, store *mapping.Store, cache *ValidityCache) *Resolver {
	return &Resolver{
		forum: forum,
		store: store,
		cache: cache,
		locks: make(map[mapping.SourceKey]*sync.Mutex),
	}
}

func (r *Resolver) keyLock(key mapping.SourceKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// TopicName applies the naming policy: "label | title" when a thread
// label is known, a synthetic label for unnamed threads, and a chat
// bubble prefix for plain chats. The left-most portion survives
// truncation.
func TopicName(key mapping.SourceKey, chatTitle, threadLabel string) string {
	var name string
	switch {
	case threadLabel != "":
		name = threadLabel + " | " + chatTitle
	case key.ThreadID != 0:
		name = fmt.Sprintf("Topic %d | %s", key.ThreadID, chatTitle)
	default:
		name = "💬 " + chatTitle
	}
	if runes := []rune(name); len(runes) > maxTopicNameLen {
		name = string(runes[:maxTopicNameLen])
	}
	return name
}

// Resolve returns a live destination topic id for key. The per-key lock
// makes topic creation exactly-once in this process; callers still
// re-resolve on send failure rather than assuming global serialization.
func (r *Resolver) Resolve(ctx context.Context, key mapping.SourceKey, chatTitle, threadLabel string, kind bus.ChatKind) (int64, error) {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	m, found, err := r.store.Get(key)
	if err != nil {
		return 0, fmt.Errorf("mapping lookup for %s: %w", key, err)
	}

	if !found {
		if !DefaultEnabled(kind) {
			// Register the private source paused; an administrator
			// enables it later.
			if err := r.store.Put(key, mapping.TopicMapping{Title: chatTitle, Enabled: false}); err != nil {
				return 0, fmt.Errorf("register paused source %s: %w", key, err)
			}
			slog.Info("Registered private source, relay paused", "source", key.String(), "title", chatTitle)
			return 0, ErrRelayDisabled
		}
		return r.create(ctx, key, chatTitle, threadLabel)
	}

	// The Enabled flag is re-read from the store on every resolution so
	// external administrative toggles take effect immediately.
	if !m.Enabled {
		return 0, ErrRelayDisabled
	}

	if m.TopicID > 1 {
		if r.cache.Has(key) {
			return m.TopicID, nil
		}
		err := r.forum.ProbeTopic(ctx, m.TopicID)
		if err == nil {
			r.cache.Mark(key)
			return m.TopicID, nil
		}
		if !errors.Is(err, transport.ErrTopicInvalid) {
			return 0, fmt.Errorf("probe topic %d for %s: %w", m.TopicID, key, err)
		}
		slog.Warn("Stored topic gone, rebuilding", "source", key.String(), "topic", m.TopicID)
		if err := r.Invalidate(key); err != nil {
			return 0, err
		}
	} else if m.TopicID != 0 {
		// Ids of 1 or lower address the destination's default stream and
		// are never relayed into.
		if err := r.Invalidate(key); err != nil {
			return 0, err
		}
	}

	return r.create(ctx, key, chatTitle, threadLabel)
}

func (r *Resolver) create(ctx context.Context, key mapping.SourceKey, chatTitle, threadLabel string) (int64, error) {
	name := TopicName(key, chatTitle, threadLabel)
	topicID, err := r.forum.CreateTopic(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("create topic %q for %s: %w", name, key, err)
	}
	if topicID <= 1 {
		return 0, fmt.Errorf("destination returned default-stream topic id %d for %s", topicID, key)
	}
	if err := r.store.Put(key, mapping.TopicMapping{Title: chatTitle, TopicID: topicID, Enabled: true}); err != nil {
		return 0, fmt.Errorf("persist mapping for %s: %w", key, err)
	}

	intro := fmt.Sprintf("📢 %s\nSource chat ID: %d", name, key.ChatID)
	if _, err := r.forum.SendText(ctx, topicID, intro); err != nil {
		slog.Warn("Intro marker failed", "source", key.String(), "topic", topicID, "error", err)
	}

	r.cache.Mark(key)
	slog.Info("Created destination topic", "source", key.String(), "topic", topicID, "name", name)
	return topicID, nil
}

// Invalidate removes the stored mapping and the validity entry for key.
// The next resolution rebuilds from scratch.
func (r *Resolver) Invalidate(key mapping.SourceKey) error {
	r.cache.Drop(key)
	if err := r.store.Delete(key); err != nil {
		return fmt.Errorf("invalidate mapping for %s: %w", key, err)
	}
	return nil
}
