package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultAgentTimeout = 60 * time.Second

// HTTPDispatcher posts each event to an agent endpoint and feeds the
// textual reply back through the Deliver hook.
type HTTPDispatcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPDispatcher builds a dispatcher for the given agent endpoint.
// A zero timeout falls back to 60 seconds.
func NewHTTPDispatcher(log *slog.Logger, endpoint string, timeout time.Duration) *HTTPDispatcher {
	if log == nil {
		log = slog.Default()
	}
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	return &HTTPDispatcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "dispatch")),
	}
}

type agentReply struct {
	Reply string   `json:"reply"`
	Text  string   `json:"text"`
	Media []string `json:"media"`
}

// Dispatch posts the request and delivers the reply, bracketing delivery
// with the OnReplyStart and OnIdle hooks. Text goes out before media.
// Hook errors are reported through OnError with the failing kind.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request, opts Options) error {
	defer opts.NotifyIdle(ctx)

	respBody, err := d.post(ctx, req)
	if err != nil {
		opts.NotifyError(ctx, ErrKindDispatch, err)
		return err
	}

	var parsed agentReply
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		err = fmt.Errorf("decode agent response: %w", err)
		opts.NotifyError(ctx, ErrKindDispatch, err)
		return err
	}
	reply := strings.TrimSpace(parsed.Reply)
	if reply == "" {
		reply = strings.TrimSpace(parsed.Text)
	}
	mediaURLs := make([]string, 0, len(parsed.Media))
	for _, raw := range parsed.Media {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			mediaURLs = append(mediaURLs, trimmed)
		}
	}
	if reply == "" && len(mediaURLs) == 0 {
		d.logger.Debug("agent returned no reply", slog.String("session", req.Route.SessionKey))
		return nil
	}

	opts.NotifyReplyStart(ctx)
	if reply != "" && opts.Deliver != nil {
		if err := opts.Deliver(ctx, reply); err != nil {
			err = fmt.Errorf("deliver reply: %w", err)
			opts.NotifyError(ctx, ErrKindReply, err)
			return err
		}
	}
	if opts.DeliverMedia == nil {
		return nil
	}
	for _, url := range mediaURLs {
		if err := opts.DeliverMedia(ctx, url); err != nil {
			err = fmt.Errorf("deliver media: %w", err)
			opts.NotifyError(ctx, ErrKindReply, err)
			return err
		}
	}
	return nil
}

func (d *HTTPDispatcher) post(ctx context.Context, req Request) ([]byte, error) {
	if d.endpoint == "" {
		return nil, fmt.Errorf("agent endpoint is not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call agent endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent endpoint error: %s", strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
