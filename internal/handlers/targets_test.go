package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/channel"
)

type stubTransport struct {
	reactions []string
	err       error
}

func (s *stubTransport) Configured() bool { return true }

func (s *stubTransport) SendText(ctx context.Context, chatGUID, text string) (string, error) {
	return "", nil
}

func (s *stubTransport) SendAttachment(ctx context.Context, chatGUID, filename string, data []byte) (string, error) {
	return "", nil
}

func (s *stubTransport) SendReaction(ctx context.Context, chatGUID, messageGUID, reaction string) error {
	s.reactions = append(s.reactions, chatGUID+":"+messageGUID+":"+reaction)
	return s.err
}

func (s *stubTransport) SetTyping(ctx context.Context, chatGUID string, typing bool) error {
	return nil
}

func (s *stubTransport) MarkRead(ctx context.Context, chatGUID string) error { return nil }

func (s *stubTransport) FindChatGUID(ctx context.Context, keys []string) (string, error) {
	return "", nil
}

func newTargetsEnv(t *testing.T, transport channel.Transport) *echo.Echo {
	t.Helper()
	manager := channel.NewManager(testLogger(), nil, nil, nil, nil)
	target := channel.NewTarget(channel.AccountConfig{ID: "acct-1"}).Bind(transport, nil)
	if _, err := manager.RegisterTarget(target); err != nil {
		t.Fatalf("register target: %v", err)
	}
	e := echo.New()
	NewTargetsHandler(testLogger(), manager).Register(e)
	return e
}

func TestTargetsList(t *testing.T) {
	t.Parallel()

	e := newTargetsEnv(t, &stubTransport{})

	req := httptest.NewRequest(http.MethodGet, "/admin/targets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var statuses []channel.TargetStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(statuses) != 1 || statuses[0].AccountID != "acct-1" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if !statuses[0].Running {
		t.Fatal("expected registered target to report running")
	}
}

func TestTargetsSendReaction(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	e := newTargetsEnv(t, transport)

	body := strings.NewReader(`{"chat_guid":"iMessage;-;+1555","message_guid":"m1","reaction":"love"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/targets/acct-1/reaction", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(transport.reactions) != 1 || transport.reactions[0] != "iMessage;-;+1555:m1:love" {
		t.Fatalf("unexpected reactions: %v", transport.reactions)
	}
}

func TestTargetsSendReactionUnknownAccount(t *testing.T) {
	t.Parallel()

	e := newTargetsEnv(t, &stubTransport{})

	body := strings.NewReader(`{"chat_guid":"g","message_guid":"m","reaction":"like"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/targets/missing/reaction", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
