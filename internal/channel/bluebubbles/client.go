package bluebubbles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bluetaphq/bluetap/internal/media"
)

const (
	defaultClientTimeout = 60 * time.Second

	// sendMethod selects the server-side delivery implementation. The
	// private API path also powers typing indicators and reactions.
	sendMethod = "private-api"

	chatQueryLimit = 1000
)

// Client talks to one BlueBubbles server over its REST API. All requests
// authenticate with the server password as a query parameter.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for the server at baseURL. A zero timeout
// falls back to 60 seconds.
func NewClient(log *slog.Logger, baseURL, password string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		password:   strings.TrimSpace(password),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "bluebubbles_client")),
	}
}

// Configured reports whether the client has a server to talk to.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

type apiEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/api/v1%s?password=%s", c.baseURL, path, url.QueryEscape(c.password))
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("bluebubbles server is not configured")
	}
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call bluebubbles server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bluebubbles server error: %s", strings.TrimSpace(string(respBody)))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return envelope.Data, nil
}

// SendText delivers one outbound text to the chat and returns the server's
// message guid when available.
func (c *Client) SendText(ctx context.Context, chatGUID, text string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/message/text", map[string]any{
		"chatGuid": chatGUID,
		"tempGuid": uuid.NewString(),
		"message":  text,
		"method":   sendMethod,
	})
	if err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	var sent struct {
		GUID string `json:"guid"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sent); err != nil {
			c.logger.Debug("unparseable send response", slog.Any("error", err))
		}
	}
	return sent.GUID, nil
}

// SendAttachment uploads one outbound attachment to the chat via multipart
// form and returns the server's message guid when available.
func (c *Client) SendAttachment(ctx context.Context, chatGUID, filename string, data []byte) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("bluebubbles server is not configured")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("attachment data is required")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "attachment"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"chatGuid": chatGUID,
		"tempGuid": uuid.NewString(),
		"name":     filename,
		"method":   sendMethod,
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	part, err := form.CreateFormFile("attachment", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/message/attachment"), &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send attachment: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bluebubbles server error: %s", strings.TrimSpace(string(respBody)))
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	var sent struct {
		GUID string `json:"guid"`
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &sent); err != nil {
			c.logger.Debug("unparseable send response", slog.Any("error", err))
		}
	}
	return sent.GUID, nil
}

// SendReaction sends a tapback on the selected message.
func (c *Client) SendReaction(ctx context.Context, chatGUID, messageGUID, reaction string) error {
	_, err := c.do(ctx, http.MethodPost, "/message/react", map[string]any{
		"chatGuid":            chatGUID,
		"selectedMessageGuid": messageGUID,
		"reaction":            reaction,
		"partIndex":           0,
	})
	if err != nil {
		return fmt.Errorf("send reaction: %w", err)
	}
	return nil
}

// SetTyping starts or stops the typing indicator in the chat. Starting an
// already-started indicator is harmless on the server side.
func (c *Client) SetTyping(ctx context.Context, chatGUID string, typing bool) error {
	method := http.MethodPost
	if !typing {
		method = http.MethodDelete
	}
	_, err := c.do(ctx, method, "/chat/"+url.PathEscape(chatGUID)+"/typing", nil)
	if err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

// MarkRead marks the chat as read.
func (c *Client) MarkRead(ctx context.Context, chatGUID string) error {
	_, err := c.do(ctx, http.MethodPost, "/chat/"+url.PathEscape(chatGUID)+"/read", nil)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

type chatInfo struct {
	GUID           string `json:"guid"`
	ChatIdentifier string `json:"chatIdentifier"`
	DisplayName    string `json:"displayName"`
	OriginalROWID  int64  `json:"originalROWID"`
	Participants   []struct {
		Address string `json:"address"`
	} `json:"participants"`
}

// FindChatGUID queries the server's chat list and returns the guid of the
// first chat matching any lookup key, in key order. An empty string means
// no chat matched.
func (c *Client) FindChatGUID(ctx context.Context, keys []string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat/query", map[string]any{
		"limit":  chatQueryLimit,
		"offset": 0,
		"with":   []string{"participants"},
	})
	if err != nil {
		return "", fmt.Errorf("query chats: %w", err)
	}
	var chats []chatInfo
	if err := json.Unmarshal(data, &chats); err != nil {
		return "", fmt.Errorf("decode chat list: %w", err)
	}

	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		for _, chat := range chats {
			if chatMatchesKey(chat, key) {
				return chat.GUID, nil
			}
		}
	}
	return "", nil
}

func chatMatchesKey(chat chatInfo, key string) bool {
	if chat.OriginalROWID > 0 && strconv.FormatInt(chat.OriginalROWID, 10) == key {
		return true
	}
	if chat.ChatIdentifier != "" && strings.EqualFold(chat.ChatIdentifier, key) {
		return true
	}
	canonical := CanonicalHandle(key)
	for _, p := range chat.Participants {
		if strings.EqualFold(p.Address, key) || CanonicalHandle(p.Address) == canonical {
			return true
		}
	}
	return false
}

// DownloadAttachment fetches the attachment's raw bytes, rejecting bodies
// larger than maxBytes. The content type comes from the response header
// when present.
func (c *Client) DownloadAttachment(ctx context.Context, attachmentGUID string, maxBytes int64) ([]byte, string, error) {
	if !c.Configured() {
		return nil, "", fmt.Errorf("bluebubbles server is not configured")
	}
	if maxBytes <= 0 {
		maxBytes = media.MaxAttachmentBytes
	}
	endpoint := c.endpoint("/attachment/" + url.PathEscape(attachmentGUID) + "/download")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("bluebubbles server error: %s", strings.TrimSpace(string(body)))
	}

	data, err := media.ReadAllWithLimit(resp.Body, maxBytes)
	if err != nil {
		return nil, "", fmt.Errorf("read attachment %s: %w", attachmentGUID, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return data, contentType, nil
}
