package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/channel"
)

type TargetsHandler struct {
	logger  *slog.Logger
	manager *channel.Manager
}

func NewTargetsHandler(log *slog.Logger, manager *channel.Manager) *TargetsHandler {
	return &TargetsHandler{
		logger:  log.With(slog.String("handler", "targets")),
		manager: manager,
	}
}

func (h *TargetsHandler) Register(e *echo.Echo) {
	group := e.Group("/admin/targets")
	group.GET("", h.ListTargets)
	group.POST("/:account_id/reaction", h.SendReaction)
}

// ListTargets godoc
// @Summary List webhook targets
// @Description List registered webhook targets with their status snapshots
// @Tags admin
// @Success 200 {array} channel.TargetStatus
// @Router /admin/targets [get]
func (h *TargetsHandler) ListTargets(c echo.Context) error {
	statuses := h.manager.Statuses()
	if statuses == nil {
		statuses = []channel.TargetStatus{}
	}
	return c.JSON(http.StatusOK, statuses)
}

type SendReactionRequest struct {
	ChatGUID    string `json:"chat_guid"`
	MessageGUID string `json:"message_guid"`
	Reaction    string `json:"reaction"`
}

// SendReaction godoc
// @Summary Send a tapback
// @Description Send a tapback to a message through an account's gateway
// @Tags admin
// @Param account_id path string true "Account id"
// @Param payload body SendReactionRequest true "Reaction payload"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /admin/targets/{account_id}/reaction [post]
func (h *TargetsHandler) SendReaction(c echo.Context) error {
	accountID := c.Param("account_id")
	var req SendReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.manager.SendReaction(c.Request().Context(), accountID, req.ChatGUID, req.MessageGUID, req.Reaction)
	if err != nil {
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "unknown account") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
