package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/topicgate/topicgate/internal/bus"
	"github.com/topicgate/topicgate/internal/correlation"
	"github.com/topicgate/topicgate/internal/mapping"
	"github.com/topicgate/topicgate/internal/transport"
)

// Outcome is what happened to one inbound event, for logs and the audit
// stream.
type Outcome string

const (
	OutcomeRelayed  Outcome = "relayed"
	OutcomeEdited   Outcome = "edited"
	OutcomeDropped  Outcome = "dropped"
	OutcomeOversize Outcome = "oversize"
)

type sendFunc func(ctx context.Context, topicID int64, fileID, caption string) (transport.Sent, error)

// Dispatcher delivers one new inbound message into its destination
// topic and records the correlation for later edits.
type Dispatcher struct {
	forum         transport.Forum
	resolver      *Resolver
	correlations  *correlation.Store
	maxMediaBytes int64
	senders       map[bus.MediaKind]sendFunc
}

// NewDispatcher wires the dispatcher. maxMediaBytes caps attachments;
// larger ones produce an in-topic warning instead of a transfer.
func NewDispatcher(forum transport.Forum, resolver *Resolver, correlations *correlation.Store, maxMediaBytes int64) *Dispatcher {
	return &Dispatcher{
		forum:         forum,
		resolver:      resolver,
		correlations:  correlations,
		maxMediaBytes: maxMediaBytes,
		senders: map[bus.MediaKind]sendFunc{
			bus.MediaPhoto:    forum.SendPhoto,
			bus.MediaDocument: forum.SendDocument,
			bus.MediaVideo:    forum.SendVideo,
			bus.MediaAudio:    forum.SendAudio,
		},
	}
}

func (d *Dispatcher) transmit(ctx context.Context, topicID int64, msg *bus.InboundMessage) (transport.Sent, error) {
	if msg.Media == nil {
		return d.forum.SendText(ctx, topicID, msg.Text)
	}
	send, ok := d.senders[msg.Media.Kind]
	if !ok {
		send = d.forum.SendDocument
	}
	return send(ctx, topicID, msg.Media.FileID, msg.Text)
}

// Relay delivers msg. It resolves the destination topic, transmits,
// verifies the message landed where it was aimed, and stores exactly
// one correlation row. A dead topic discovered mid-send triggers one
// rebuild-and-resend cycle; any further failure is terminal for this
// message.
func (d *Dispatcher) Relay(ctx context.Context, msg *bus.InboundMessage) (Outcome, error) {
	key := mapping.SourceKey{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	for attempt := 0; attempt < 2; attempt++ {
		topicID, err := d.resolver.Resolve(ctx, key, msg.ChatTitle, msg.ThreadLabel, msg.ChatKind)
		if errors.Is(err, ErrRelayDisabled) {
			slog.Debug("Source not relayed", "source", key.String(), "trace_id", msg.TraceID)
			return OutcomeDropped, nil
		}
		if err != nil {
			return OutcomeDropped, err
		}

		if msg.Media != nil && msg.Media.Size > d.maxMediaBytes {
			warn := fmt.Sprintf("⚠️ Attachment from %s (%d bytes) exceeds the %d MiB relay limit and was not mirrored.",
				msg.ChatTitle, msg.Media.Size, d.maxMediaBytes/(1<<20))
			if _, err := d.forum.SendText(ctx, topicID, warn); err != nil {
				return OutcomeDropped, fmt.Errorf("post oversize warning for %s: %w", key, err)
			}
			slog.Warn("Oversize attachment skipped", "source", key.String(), "size", msg.Media.Size, "trace_id", msg.TraceID)
			return OutcomeOversize, nil
		}

		sent, err := d.transmit(ctx, topicID, msg)
		if errors.Is(err, transport.ErrTopicInvalid) {
			slog.Warn("Topic died mid-send, rebuilding", "source", key.String(), "topic", topicID, "attempt", attempt)
			if err := d.resolver.Invalidate(key); err != nil {
				return OutcomeDropped, err
			}
			continue
		}
		if err != nil {
			return OutcomeDropped, fmt.Errorf("send message %d from %s: %w", msg.ID, key, err)
		}

		if sent.TopicID != topicID {
			// The destination silently rerouted the send into another
			// stream. Remove the stray copy and rebuild the mapping.
			if err := d.forum.DeleteMessage(ctx, sent.MessageID); err != nil {
				slog.Warn("Could not remove rerouted message", "dest_message", sent.MessageID, "error", err)
			}
			slog.Warn("Send landed in wrong topic", "source", key.String(), "wanted", topicID, "got", sent.TopicID, "attempt", attempt)
			if err := d.resolver.Invalidate(key); err != nil {
				return OutcomeDropped, err
			}
			continue
		}

		rec := correlation.Record{
			SourceChatID:    msg.ChatID,
			SourceMessageID: msg.ID,
			DestMessageID:   sent.MessageID,
			DestTopicID:     sent.TopicID,
		}
		if err := d.correlations.Put(rec); err != nil {
			// Delivered but untracked: future edits of this message will
			// not propagate.
			slog.Error("Correlation write failed", "source", key.String(), "message", msg.ID, "error", err)
		}
		return OutcomeRelayed, nil
	}

	return OutcomeDropped, fmt.Errorf("relay message %d from %s: destination topic unusable after rebuild", msg.ID, key)
}
