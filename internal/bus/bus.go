// Package bus provides the async event bus between the receive-side
// transport and the relay engine.
package bus

import (
	"context"
	"strings"
	"time"
)

// ChatKind classifies the source conversation.
type ChatKind string

const (
	ChatGroup   ChatKind = "group"
	ChatChannel ChatKind = "channel"
	ChatPrivate ChatKind = "private"
)

// MediaKind is the tagged media variant, classified once at ingestion.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
)

// MediaDescriptor carries transport metadata for an attached file. The
// relay checks Size before moving any bytes.
type MediaDescriptor struct {
	Kind   MediaKind `json:"kind"`
	FileID string    `json:"file_id"`
	MIME   string    `json:"mime"`
	Size   int64     `json:"size"`
}

// ClassifyMedia maps a raw MIME type onto the tagged variant. Anything
// that is not an image, video or audio stream relays as a document.
func ClassifyMedia(mime string) MediaKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaPhoto
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	default:
		return MediaDocument
	}
}

// InboundMessage is one event from the receive-side transport. New
// messages and edits arrive on the same bus, distinguished by Edit.
type InboundMessage struct {
	ID          int64            `json:"id"`
	ChatID      int64            `json:"chat_id"`
	SenderID    int64            `json:"sender_id"`
	ThreadID    int64            `json:"thread_id"` // 0 = main timeline
	ThreadLabel string           `json:"thread_label,omitempty"`
	ChatTitle   string           `json:"chat_title"`
	ChatKind    ChatKind         `json:"chat_kind"`
	Username    string           `json:"username,omitempty"`
	Text        string           `json:"text"`
	Media       *MediaDescriptor `json:"media,omitempty"`
	Edit        bool             `json:"edit"`
	System      bool             `json:"system"` // service/system notification
	TraceID     string           `json:"trace_id"`
	Timestamp   time.Time        `json:"timestamp"`
}

// EventBus decouples the receive-side transport from the relay engine.
type EventBus struct {
	inbound chan *InboundMessage
}

// New creates an event bus with a bounded inbound queue.
func New() *EventBus {
	return &EventBus{
		inbound: make(chan *InboundMessage, 100),
	}
}

// PublishInbound hands an event to the relay engine. Blocks when the
// queue is full, which backpressures the transport poller.
func (b *EventBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until an event is available or ctx is cancelled.
func (b *EventBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InboundSize returns the number of pending inbound events.
func (b *EventBus) InboundSize() int {
	return len(b.inbound)
}
