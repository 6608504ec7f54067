package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// topicIconColor matches the fixed accent color used for every created
// topic.
const topicIconColor = 0x6FB9F0

// BotClient implements Forum over the Telegram Bot API. All sends
// target the single destination forum chat.
type BotClient struct {
	apiBase string
	token   string
	chatID  int64
	http    *http.Client
}

// NewBotClient creates a send-side client for the destination forum.
func NewBotClient(apiBase, token string, destChatID int64, timeout time.Duration) *BotClient {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BotClient{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  destChatID,
		http:    &http.Client{Timeout: timeout},
	}
}

// BotID extracts the bot's own user id from its token. The id prefixes
// the token before the colon.
func (c *BotClient) BotID() int64 {
	head, _, ok := strings.Cut(c.token, ":")
	if !ok {
		return 0
	}
	id, _ := strconv.ParseInt(head, 10, 64)
	return id
}

// DestChatID returns the destination forum chat id.
func (c *BotClient) DestChatID() int64 { return c.chatID }

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
	ThreadID  int64 `json:"message_thread_id"`
}

func (c *BotClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, method, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("%s: %w", method, classifyAPIError(out.ErrorCode, out.Description))
	}
	return out.Result, nil
}

// ProbeTopic verifies a topic exists via a no-op topic edit. The
// destination answers "not modified" for a live topic and "thread not
// found" for a deleted one.
func (c *BotClient) ProbeTopic(ctx context.Context, topicID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	params.Set("message_thread_id", strconv.FormatInt(topicID, 10))
	_, err := c.call(ctx, "editForumTopic", params)
	if err == nil || errors.Is(err, ErrNotModified) {
		return nil
	}
	if errors.Is(err, ErrTopicInvalid) {
		return ErrTopicInvalid
	}
	var ae *apiError
	if errors.As(err, &ae) && ae.code == 400 {
		return ErrTopicInvalid
	}
	return err
}

// CreateTopic creates a new forum topic and returns its thread id.
func (c *BotClient) CreateTopic(ctx context.Context, name string) (int64, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	params.Set("name", name)
	params.Set("icon_color", strconv.Itoa(topicIconColor))
	raw, err := c.call(ctx, "createForumTopic", params)
	if err != nil {
		return 0, err
	}
	var topic struct {
		ThreadID int64 `json:"message_thread_id"`
	}
	if err := json.Unmarshal(raw, &topic); err != nil {
		return 0, fmt.Errorf("createForumTopic: decode: %w", err)
	}
	return topic.ThreadID, nil
}

func (c *BotClient) send(ctx context.Context, method string, params url.Values, topicID int64) (Sent, error) {
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	if topicID > 0 {
		params.Set("message_thread_id", strconv.FormatInt(topicID, 10))
	}
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return Sent{}, err
	}
	var msg apiMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Sent{}, fmt.Errorf("%s: decode: %w", method, err)
	}
	return Sent{MessageID: msg.MessageID, TopicID: msg.ThreadID}, nil
}

func (c *BotClient) SendText(ctx context.Context, topicID int64, text string) (Sent, error) {
	params := url.Values{}
	params.Set("text", text)
	return c.send(ctx, "sendMessage", params, topicID)
}

func (c *BotClient) sendMedia(ctx context.Context, method, field string, topicID int64, fileID, caption string) (Sent, error) {
	params := url.Values{}
	params.Set(field, fileID)
	if caption != "" {
		params.Set("caption", caption)
	}
	return c.send(ctx, method, params, topicID)
}

func (c *BotClient) SendPhoto(ctx context.Context, topicID int64, fileID, caption string) (Sent, error) {
	return c.sendMedia(ctx, "sendPhoto", "photo", topicID, fileID, caption)
}

func (c *BotClient) SendDocument(ctx context.Context, topicID int64, fileID, caption string) (Sent, error) {
	return c.sendMedia(ctx, "sendDocument", "document", topicID, fileID, caption)
}

func (c *BotClient) SendVideo(ctx context.Context, topicID int64, fileID, caption string) (Sent, error) {
	return c.sendMedia(ctx, "sendVideo", "video", topicID, fileID, caption)
}

func (c *BotClient) SendAudio(ctx context.Context, topicID int64, fileID, caption string) (Sent, error) {
	return c.sendMedia(ctx, "sendAudio", "audio", topicID, fileID, caption)
}

func (c *BotClient) EditText(ctx context.Context, messageID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))
	params.Set("text", text)
	_, err := c.call(ctx, "editMessageText", params)
	return err
}

func (c *BotClient) EditCaption(ctx context.Context, messageID int64, caption string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))
	params.Set("caption", caption)
	_, err := c.call(ctx, "editMessageCaption", params)
	return err
}

func (c *BotClient) DeleteMessage(ctx context.Context, messageID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(c.chatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))
	_, err := c.call(ctx, "deleteMessage", params)
	return err
}

var _ Forum = (*BotClient)(nil)
