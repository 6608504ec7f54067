// Package mapping persists the association from a source conversation
// to its destination forum topic.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// schemaVersion of the on-disk document. Version 1 was a flat
// "<chat>_<thread>" keyed object; version 2 nests topics under chats.
const schemaVersion = 2

// SourceKey identifies one logical conversation thread at the origin.
// ThreadID 0 means the chat's main timeline.
type SourceKey struct {
	ChatID   int64
	ThreadID int64
}

// String renders the legacy flat key form, still used in logs.
func (k SourceKey) String() string {
	return strconv.FormatInt(k.ChatID, 10) + "_" + strconv.FormatInt(k.ThreadID, 10)
}

// TopicMapping is one record per source key. TopicID 0 means the source
// is known but no destination topic has been created yet.
type TopicMapping struct {
	Title     string    `json:"title"`
	TopicID   int64     `json:"topicId"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatRecord struct {
	Title  string                   `json:"title"`
	Topics map[string]*TopicMapping `json:"topics"`
}

type document struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Chats         map[string]*chatRecord `json:"chats"`
}

// Store is a durable key→mapping store backed by a JSON document.
// Every operation re-reads the file so that out-of-process toggles of
// the Enabled flag are always observed; the mutex only serializes
// writers within this process.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore opens (and if needed migrates) the mapping file at path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, migrated, err := s.load()
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := s.save(doc); err != nil {
			return nil, fmt.Errorf("rewrite migrated mapping file: %w", err)
		}
	}
	return s, nil
}

func (s *Store) load() (*document, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{SchemaVersion: schemaVersion, Chats: map[string]*chatRecord{}}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && doc.SchemaVersion >= schemaVersion {
		if doc.Chats == nil {
			doc.Chats = map[string]*chatRecord{}
		}
		return &doc, false, nil
	}

	migrated, err := migrateFlat(data)
	if err != nil {
		return nil, false, fmt.Errorf("mapping file %s is neither v%d nor a flat legacy document: %w", s.path, schemaVersion, err)
	}
	return migrated, true, nil
}

// legacyRecord mirrors the v1 flat layout so it can be migrated.
type legacyRecord struct {
	ChatTitle string `json:"chat_title"`
	TopicID   int64  `json:"topic_id"`
	Enabled   *bool  `json:"enabled"`
	CreatedAt string `json:"created_at"`
}

func migrateFlat(data []byte) (*document, error) {
	var flat map[string]legacyRecord
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	doc := &document{SchemaVersion: schemaVersion, Chats: map[string]*chatRecord{}}
	for key, rec := range flat {
		// Chat ids are often negative, so split on the last underscore.
		i := strings.LastIndex(key, "_")
		if i <= 0 {
			continue
		}
		chatPart, threadPart := key[:i], key[i+1:]
		if _, err := strconv.ParseInt(chatPart, 10, 64); err != nil {
			continue
		}
		if _, err := strconv.ParseInt(threadPart, 10, 64); err != nil {
			continue
		}
		enabled := true
		if rec.Enabled != nil {
			enabled = *rec.Enabled
		}
		createdAt, _ := time.Parse(time.RFC3339, rec.CreatedAt)
		chat := doc.Chats[chatPart]
		if chat == nil {
			chat = &chatRecord{Title: rec.ChatTitle, Topics: map[string]*TopicMapping{}}
			doc.Chats[chatPart] = chat
		}
		chat.Topics[threadPart] = &TopicMapping{
			Title:     rec.ChatTitle,
			TopicID:   rec.TopicID,
			Enabled:   enabled,
			CreatedAt: createdAt,
		}
	}
	return doc, nil
}

func (s *Store) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func chatKeyOf(k SourceKey) string   { return strconv.FormatInt(k.ChatID, 10) }
func threadKeyOf(k SourceKey) string { return strconv.FormatInt(k.ThreadID, 10) }

// Get returns the mapping for key, re-read from disk.
func (s *Store) Get(key SourceKey) (TopicMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	if err != nil {
		return TopicMapping{}, false, err
	}
	chat := doc.Chats[chatKeyOf(key)]
	if chat == nil {
		return TopicMapping{}, false, nil
	}
	m := chat.Topics[threadKeyOf(key)]
	if m == nil {
		return TopicMapping{}, false, nil
	}
	return *m, true, nil
}

// Put stores the mapping for key, creating the chat record as needed.
func (s *Store) Put(key SourceKey, m TopicMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	if err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	chat := doc.Chats[chatKeyOf(key)]
	if chat == nil {
		chat = &chatRecord{Topics: map[string]*TopicMapping{}}
		doc.Chats[chatKeyOf(key)] = chat
	}
	if m.Title != "" {
		chat.Title = m.Title
	}
	chat.Topics[threadKeyOf(key)] = &m
	return s.save(doc)
}

// Delete removes the mapping for key. Deleting an absent key is a no-op.
func (s *Store) Delete(key SourceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	if err != nil {
		return err
	}
	chat := doc.Chats[chatKeyOf(key)]
	if chat == nil {
		return nil
	}
	if _, ok := chat.Topics[threadKeyOf(key)]; !ok {
		return nil
	}
	delete(chat.Topics, threadKeyOf(key))
	if len(chat.Topics) == 0 {
		delete(doc.Chats, chatKeyOf(key))
	}
	return s.save(doc)
}

// SetEnabled flips the relay gate for key. Returns an error when the
// key is unknown.
func (s *Store) SetEnabled(key SourceKey, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	if err != nil {
		return err
	}
	chat := doc.Chats[chatKeyOf(key)]
	if chat == nil || chat.Topics[threadKeyOf(key)] == nil {
		return fmt.Errorf("no mapping for source %s", key)
	}
	chat.Topics[threadKeyOf(key)].Enabled = enabled
	return s.save(doc)
}

// All returns a snapshot of every mapping keyed by source.
func (s *Store) All() (map[SourceKey]TopicMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, _, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[SourceKey]TopicMapping)
	for chatKey, chat := range doc.Chats {
		chatID, err := strconv.ParseInt(chatKey, 10, 64)
		if err != nil {
			continue
		}
		for threadKey, m := range chat.Topics {
			threadID, err := strconv.ParseInt(threadKey, 10, 64)
			if err != nil {
				continue
			}
			out[SourceKey{ChatID: chatID, ThreadID: threadID}] = *m
		}
	}
	return out, nil
}
