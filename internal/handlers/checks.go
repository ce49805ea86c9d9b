package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/healthcheck"
)

type ChecksHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

func NewChecksHandler(log *slog.Logger, checkers []healthcheck.Checker) *ChecksHandler {
	return &ChecksHandler{
		logger:   log.With(slog.String("handler", "checks")),
		checkers: checkers,
	}
}

func (h *ChecksHandler) Register(e *echo.Echo) {
	e.GET("/admin/checks", h.ListChecks)
}

type ChecksResponse struct {
	Summary healthcheck.Summary       `json:"summary"`
	Checks  []healthcheck.CheckResult `json:"checks"`
}

// ListChecks godoc
// @Summary Run health checks
// @Description Run all registered health checks and return the results with a summary
// @Tags admin
// @Success 200 {object} ChecksResponse
// @Router /admin/checks [get]
func (h *ChecksHandler) ListChecks(c echo.Context) error {
	ctx := c.Request().Context()
	results := []healthcheck.CheckResult{}
	for _, checker := range h.checkers {
		results = append(results, checker.ListChecks(ctx)...)
	}
	return c.JSON(http.StatusOK, ChecksResponse{
		Summary: healthcheck.Summarize(results),
		Checks:  results,
	})
}
