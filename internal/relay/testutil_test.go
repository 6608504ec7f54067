package relay

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/topicgate/topicgate/internal/correlation"
	"github.com/topicgate/topicgate/internal/mapping"
	"github.com/topicgate/topicgate/internal/transport"
)

// fakeForum implements transport.Forum with injectable hooks. By
// default it creates topics with increasing ids from 100 and every send
// lands in the requested topic.
type fakeForum struct {
	mu          sync.Mutex
	calls       []string
	nextTopicID int64
	nextMsgID   int64

	probeFn      func(topicID int64) error
	createFn     func(name string) (int64, error)
	sendTextFn   func(topicID int64, text string) (transport.Sent, error)
	sendMediaFn  func(method string, topicID int64, fileID, caption string) (transport.Sent, error)
	editTextFn   func(messageID int64, text string) error
	editCapFn    func(messageID int64, caption string) error
	deleteFn     func(messageID int64) error
	createdNames []string
	sentTexts    []string
}

func newFakeForum() *fakeForum {
	return &fakeForum{nextTopicID: 100, nextMsgID: 1000}
}

func (f *fakeForum) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeForum) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeForum) ProbeTopic(_ context.Context, topicID int64) error {
	f.record("probe")
	if f.probeFn != nil {
		return f.probeFn(topicID)
	}
	return nil
}

func (f *fakeForum) CreateTopic(_ context.Context, name string) (int64, error) {
	f.record("create")
	f.mu.Lock()
	f.createdNames = append(f.createdNames, name)
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTopicID++
	return f.nextTopicID, nil
}

func (f *fakeForum) newSent(topicID int64) transport.Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	return transport.Sent{MessageID: f.nextMsgID, TopicID: topicID}
}

func (f *fakeForum) SendText(_ context.Context, topicID int64, text string) (transport.Sent, error) {
	f.record("sendText")
	f.mu.Lock()
	f.sentTexts = append(f.sentTexts, text)
	f.mu.Unlock()
	if f.sendTextFn != nil {
		return f.sendTextFn(topicID, text)
	}
	return f.newSent(topicID), nil
}

func (f *fakeForum) sendMedia(method string, topicID int64, fileID, caption string) (transport.Sent, error) {
	f.record(method)
	if f.sendMediaFn != nil {
		return f.sendMediaFn(method, topicID, fileID, caption)
	}
	return f.newSent(topicID), nil
}

func (f *fakeForum) SendPhoto(_ context.Context, topicID int64, fileID, caption string) (transport.Sent, error) {
	return f.sendMedia("sendPhoto", topicID, fileID, caption)
}

func (f *fakeForum) SendDocument(_ context.Context, topicID int64, fileID, caption string) (transport.Sent, error) {
	return f.sendMedia("sendDocument", topicID, fileID, caption)
}

func (f *fakeForum) SendVideo(_ context.Context, topicID int64, fileID, caption string) (transport.Sent, error) {
	return f.sendMedia("sendVideo", topicID, fileID, caption)
}

func (f *fakeForum) SendAudio(_ context.Context, topicID int64, fileID, caption string) (transport.Sent, error) {
	return f.sendMedia("sendAudio", topicID, fileID, caption)
}

func (f *fakeForum) EditText(_ context.Context, messageID int64, text string) error {
	f.record("editText")
	if f.editTextFn != nil {
		return f.editTextFn(messageID, text)
	}
	return nil
}

func (f *fakeForum) EditCaption(_ context.Context, messageID int64, caption string) error {
	f.record("editCaption")
	if f.editCapFn != nil {
		return f.editCapFn(messageID, caption)
	}
	return nil
}

func (f *fakeForum) DeleteMessage(_ context.Context, messageID int64) error {
	f.record("delete")
	if f.deleteFn != nil {
		return f.deleteFn(messageID)
	}
	return nil
}

var _ transport.Forum = (*fakeForum)(nil)

func newTestMappingStore(t *testing.T) *mapping.Store {
	t.Helper()
	s, err := mapping.NewStore(filepath.Join(t.TempDir(), "topics_mapping.json"))
	if err != nil {
		t.Fatalf("open mapping store: %v", err)
	}
	return s
}

func newTestCorrelationStore(t *testing.T) *correlation.Store {
	t.Helper()
	s, err := correlation.NewStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open correlation store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
