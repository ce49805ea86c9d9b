package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/auth"
)

type stubHandler struct{}

func (stubHandler) Register(e *echo.Echo) {
	e.GET("/admin/targets", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	})
}

type catchAllHandler struct{}

func (catchAllHandler) Register(e *echo.Echo) {
	e.Any("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "webhook")
	})
}

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(log, ":0", secret, []Handler{stubHandler{}, catchAllHandler{}})
}

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/bluebubbles-webhook", want: true},
		{path: "/bluebubbles-webhook/extra", want: true},
		{path: "/admin", want: false},
		{path: "/admin/targets", want: false},
		{path: "/admin/pairing/abc/approve", want: false},
		{path: "/administrate", want: true},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.path)
		if got != tc.want {
			t.Fatalf("path=%q want=%v got=%v", tc.path, tc.want, got)
		}
	}
}

func TestAdminRequiresToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/targets", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing token: expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/targets", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}

	token, _, err := auth.GenerateToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/admin/targets", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", rec.Code)
	}
}

func TestWebhookPathOpenWithoutToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/bluebubbles-webhook", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected catch-all to serve without token, got %d", rec.Code)
	}
	if rec.Body.String() != "webhook" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}
