package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/topicgate/topicgate/internal/bus"
)

// Poller is the receive-side collaborator: it long-polls the source
// update feed and publishes typed events onto the bus. Media is
// classified into its tagged variant here, once, at ingestion.
type Poller struct {
	client *BotClient
	bus    *bus.EventBus
	offset int64
}

// NewPoller creates a poller feeding the given bus.
func NewPoller(client *BotClient, eventBus *bus.EventBus) *Poller {
	return &Poller{client: client, bus: eventBus}
}

type updateChat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username"`
	First    string `json:"first_name"`
}

type updateUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	First    string `json:"first_name"`
}

type fileMeta struct {
	FileID string `json:"file_id"`
	MIME   string `json:"mime_type"`
	Size   int64  `json:"file_size"`
}

type updateMessage struct {
	MessageID int64      `json:"message_id"`
	Chat      updateChat `json:"chat"`
	From      updateUser `json:"from"`
	ThreadID  int64      `json:"message_thread_id"`
	Text      string     `json:"text"`
	Caption   string     `json:"caption"`
	Photo     []fileMeta `json:"photo"`
	Document  *fileMeta  `json:"document"`
	Video     *fileMeta  `json:"video"`
	Audio     *fileMeta  `json:"audio"`
	Voice     *fileMeta  `json:"voice"`
	ReplyTo   *struct {
		TopicCreated *struct {
			Name string `json:"name"`
		} `json:"forum_topic_created"`
	} `json:"reply_to_message"`
	TopicCreated *json.RawMessage `json:"forum_topic_created"`
	TopicClosed  *json.RawMessage `json:"forum_topic_closed"`
	NewMembers   []updateUser     `json:"new_chat_members"`
	LeftMember   *updateUser      `json:"left_chat_member"`
}

type update struct {
	ID          int64          `json:"update_id"`
	Message     *updateMessage `json:"message"`
	EditedMsg   *updateMessage `json:"edited_message"`
	ChannelPost *updateMessage `json:"channel_post"`
	EditedPost  *updateMessage `json:"edited_channel_post"`
}

// Run polls until ctx is cancelled. Poll failures back off briefly and
// never terminate the loop.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("Update poller started")
	for {
		updates, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Poll failed", "error", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		for _, u := range updates {
			p.offset = u.ID + 1
			if msg := p.convert(u); msg != nil {
				p.bus.PublishInbound(msg)
			}
		}
	}
}

func (p *Poller) fetch(ctx context.Context) ([]update, error) {
	params := url.Values{}
	params.Set("timeout", "30")
	params.Set("allowed_updates", `["message","edited_message","channel_post","edited_channel_post"]`)
	if p.offset > 0 {
		params.Set("offset", strconv.FormatInt(p.offset, 10))
	}
	raw, err := p.client.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}
	var out []update
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Poller) convert(u update) *bus.InboundMessage {
	var m *updateMessage
	edit := false
	switch {
	case u.Message != nil:
		m = u.Message
	case u.EditedMsg != nil:
		m, edit = u.EditedMsg, true
	case u.ChannelPost != nil:
		m = u.ChannelPost
	case u.EditedPost != nil:
		m, edit = u.EditedPost, true
	default:
		return nil
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := &bus.InboundMessage{
		ID:        m.MessageID,
		ChatID:    m.Chat.ID,
		SenderID:  m.From.ID,
		ThreadID:  m.ThreadID,
		ChatTitle: chatTitle(m.Chat),
		ChatKind:  chatKind(m.Chat.Type),
		Username:  m.Chat.Username,
		Text:      text,
		Media:     classify(m),
		Edit:      edit,
		System:    m.TopicCreated != nil || m.TopicClosed != nil || len(m.NewMembers) > 0 || m.LeftMember != nil,
		TraceID:   uuid.NewString(),
	}
	if m.ReplyTo != nil && m.ReplyTo.TopicCreated != nil {
		msg.ThreadLabel = m.ReplyTo.TopicCreated.Name
	}
	return msg
}

func chatTitle(c updateChat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.First != "" {
		return c.First
	}
	return "Private Chat"
}

func chatKind(t string) bus.ChatKind {
	switch t {
	case "private":
		return bus.ChatPrivate
	case "channel":
		return bus.ChatChannel
	default:
		return bus.ChatGroup
	}
}

func classify(m *updateMessage) *bus.MediaDescriptor {
	switch {
	case len(m.Photo) > 0:
		// Largest rendition is last.
		f := m.Photo[len(m.Photo)-1]
		return &bus.MediaDescriptor{Kind: bus.MediaPhoto, FileID: f.FileID, MIME: "image/jpeg", Size: f.Size}
	case m.Video != nil:
		return &bus.MediaDescriptor{Kind: bus.MediaVideo, FileID: m.Video.FileID, MIME: m.Video.MIME, Size: m.Video.Size}
	case m.Audio != nil:
		return &bus.MediaDescriptor{Kind: bus.MediaAudio, FileID: m.Audio.FileID, MIME: m.Audio.MIME, Size: m.Audio.Size}
	case m.Voice != nil:
		return &bus.MediaDescriptor{Kind: bus.MediaAudio, FileID: m.Voice.FileID, MIME: m.Voice.MIME, Size: m.Voice.Size}
	case m.Document != nil:
		return &bus.MediaDescriptor{Kind: bus.ClassifyMedia(m.Document.MIME), FileID: m.Document.FileID, MIME: m.Document.MIME, Size: m.Document.Size}
	}
	return nil
}
