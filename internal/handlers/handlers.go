package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/chat"
	"github.com/wejrox/dogbot/internal/config"
	"github.com/wejrox/dogbot/internal/dogact"
	"github.com/wejrox/dogbot/internal/middleware"
)

// Handler combines all handler types
type Handler struct {
	Auth   *AuthHandler
	Act    *ActHandler
	Member *MemberHandler

	svc    *adjudication.Service
	logger *slog.Logger
}

// NewHandler creates a unified handler with all sub-handlers. Adjudications
// started over HTTP outlive their request and run under runCtx.
func NewHandler(runCtx context.Context, svc *adjudication.Service, board *chat.Board, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Auth:   NewAuthHandler(svc, cfg),
		Act:    NewActHandler(runCtx, svc, board, logger),
		Member: NewMemberHandler(svc, cfg, logger),
		svc:    svc,
		logger: logger,
	}
}

// RememberCaller records the display name carried in the caller's token the
// first time the member is seen. Names set later through the API are kept.
func (h *Handler) RememberCaller(c *gin.Context) {
	id, ok := middleware.MemberID(c)
	name := middleware.MemberName(c)
	if !ok || name == "" {
		c.Next()
		return
	}

	ctx := c.Request.Context()
	if _, err := h.svc.DisplayName(ctx, dogact.MemberID(id)); err != nil {
		if err := h.svc.RememberMember(ctx, dogact.MemberID(id), name); err != nil {
			h.logger.Warn("failed to remember member", "member_id", id, "error", err)
		}
	}
	c.Next()
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dogact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dogact.ErrAppealAlreadySpent), errors.Is(err, dogact.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, adjudication.ErrCollaboratorUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// int64Param parses a numeric path parameter, replying 400 when it is not one.
func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}

// intQuery parses an optional numeric query parameter; missing means zero.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}

func currentMember(c *gin.Context) (dogact.MemberID, bool) {
	id, ok := middleware.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return dogact.MemberID(id), true
}

// displayNameOr falls back to the numeric ID for members never seen by name.
func displayNameOr(ctx context.Context, svc *adjudication.Service, id dogact.MemberID) string {
	name, err := svc.DisplayName(ctx, id)
	if err != nil {
		return strconv.FormatInt(int64(id), 10)
	}
	return name
}
