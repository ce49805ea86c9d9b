package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/pairing"
)

type PairingHandler struct {
	logger   *slog.Logger
	service  *pairing.Service
	accounts []string
}

// NewPairingHandler creates the pairing admin handler. accounts is the list
// of configured account ids the handler may query.
func NewPairingHandler(log *slog.Logger, service *pairing.Service, accounts []string) *PairingHandler {
	return &PairingHandler{
		logger:   log.With(slog.String("handler", "pairing")),
		service:  service,
		accounts: accounts,
	}
}

func (h *PairingHandler) Register(e *echo.Echo) {
	group := e.Group("/admin/pairing")
	group.GET("", h.ListRequests)
	group.POST("/:id/approve", h.ApproveRequest)
	group.DELETE("/:id", h.RevokeRequest)
}

// ListRequests godoc
// @Summary List pairing requests
// @Description List pairing requests, optionally filtered by account and status
// @Tags admin
// @Param account_id query string false "Account id"
// @Param status query string false "pending or approved"
// @Success 200 {array} pairing.Request
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/pairing [get]
func (h *PairingHandler) ListRequests(c echo.Context) error {
	status := pairing.Status(c.QueryParam("status"))
	switch status {
	case "", pairing.StatusPending, pairing.StatusApproved:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status: "+string(status))
	}
	requests, err := h.listRequests(c.Request().Context(), c.QueryParam("account_id"), status)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if requests == nil {
		requests = []pairing.Request{}
	}
	return c.JSON(http.StatusOK, requests)
}

// ApproveRequest godoc
// @Summary Approve a pairing request
// @Description Approve a pending pairing request, adding the sender to the dynamic allow list
// @Tags admin
// @Param id path string true "Pairing request id"
// @Success 200 {object} pairing.Request
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/pairing/{id}/approve [post]
func (h *PairingHandler) ApproveRequest(c echo.Context) error {
	ctx := c.Request().Context()
	request, err := h.findRequest(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	approved, err := h.service.Approve(ctx, channel.ChannelType(request.Channel), request.AccountID, request.Code)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("pairing request approved",
		slog.String("account_id", approved.AccountID),
		slog.String("sender_id", approved.SenderID))
	return c.JSON(http.StatusOK, approved)
}

// RevokeRequest godoc
// @Summary Revoke a pairing request
// @Description Delete a pairing request, removing an approved sender from the dynamic allow list
// @Tags admin
// @Param id path string true "Pairing request id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/pairing/{id} [delete]
func (h *PairingHandler) RevokeRequest(c echo.Context) error {
	ctx := c.Request().Context()
	request, err := h.findRequest(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.service.Revoke(ctx, channel.ChannelType(request.Channel), request.AccountID, request.SenderID); err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("pairing request revoked",
		slog.String("account_id", request.AccountID),
		slog.String("sender_id", request.SenderID))
	return c.NoContent(http.StatusNoContent)
}

func (h *PairingHandler) listRequests(ctx context.Context, accountID string, status pairing.Status) ([]pairing.Request, error) {
	accounts := h.accounts
	if trimmed := strings.TrimSpace(accountID); trimmed != "" {
		accounts = []string{trimmed}
	}
	var requests []pairing.Request
	for _, account := range accounts {
		items, err := h.service.ListRequests(ctx, channel.TypeBlueBubbles, account, status)
		if err != nil {
			return nil, err
		}
		requests = append(requests, items...)
	}
	return requests, nil
}

func (h *PairingHandler) findRequest(ctx context.Context, id string) (pairing.Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pairing.Request{}, echo.NewHTTPError(http.StatusBadRequest, "request id is required")
	}
	requests, err := h.listRequests(ctx, "", "")
	if err != nil {
		return pairing.Request{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, request := range requests {
		if request.ID == id {
			return request, nil
		}
	}
	return pairing.Request{}, echo.NewHTTPError(http.StatusNotFound, "pairing request not found")
}
