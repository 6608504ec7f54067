// Package transport defines the destination forum capability set and a
// Telegram Bot API implementation of it. The relay core only speaks
// this interface and the structured error kinds below.
package transport

import "context"

// Sent identifies a message the destination accepted, including the
// topic it actually landed in. The destination may silently reroute a
// send aimed at a stale topic into its default stream, so callers must
// compare TopicID against the intended target.
type Sent struct {
	MessageID int64
	TopicID   int64
}

// Forum is the send-side capability set of the destination.
type Forum interface {
	// ProbeTopic checks that a topic still exists. Returns nil when the
	// topic is alive and ErrTopicInvalid when the destination reports it
	// gone. Other errors mean the probe itself failed.
	ProbeTopic(ctx context.Context, topicID int64) error
	// CreateTopic creates a new forum topic and returns its id.
	CreateTopic(ctx context.Context, name string) (int64, error)

	SendText(ctx context.Context, topicID int64, text string) (Sent, error)
	SendPhoto(ctx context.Context, topicID int64, fileID, caption string) (Sent, error)
	SendDocument(ctx context.Context, topicID int64, fileID, caption string) (Sent, error)
	SendVideo(ctx context.Context, topicID int64, fileID, caption string) (Sent, error)
	SendAudio(ctx context.Context, topicID int64, fileID, caption string) (Sent, error)

	EditText(ctx context.Context, messageID int64, text string) error
	EditCaption(ctx context.Context, messageID int64, caption string) error
	DeleteMessage(ctx context.Context, messageID int64) error
}
