package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/chat"
	"github.com/wejrox/dogbot/internal/dogact"
	"github.com/wejrox/dogbot/internal/models"
)

type ActHandler struct {
	svc    *adjudication.Service
	board  *chat.Board
	runCtx context.Context
	logger *slog.Logger
}

func NewActHandler(runCtx context.Context, svc *adjudication.Service, board *chat.Board, logger *slog.Logger) *ActHandler {
	return &ActHandler{svc: svc, board: board, runCtx: runCtx, logger: logger}
}

// ReportAct accuses a member and opens voting in the background
func (h *ActHandler) ReportAct(c *gin.Context) {
	guildID, ok := int64Param(c, "guildID")
	if !ok {
		return
	}

	var input models.CreateDogActRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id is required"})
		return
	}

	reporter, ok := currentMember(c)
	if !ok {
		return
	}

	trial, err := h.svc.Accuse(c.Request.Context(), adjudication.Accusation{
		GuildID:  guildID,
		Reporter: reporter,
		Target:   dogact.MemberID(input.TargetID),
		Reason:   input.Reason,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to report dog act")
		return
	}
	h.svc.Start(h.runCtx, trial)

	c.JSON(http.StatusAccepted, gin.H{
		"id":     trial.ActID(),
		"status": dogact.Pending.String(),
	})
}

// GetAct returns the current standing of a dog act
func (h *ActHandler) GetAct(c *gin.Context) {
	actID, ok := int64Param(c, "actID")
	if !ok {
		return
	}

	status, err := h.svc.Describe(c.Request.Context(), actID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch dog act")
		return
	}

	act := status.Act
	c.JSON(http.StatusOK, gin.H{
		"id":               act.ID,
		"guild_id":         act.GuildID,
		"reporter_id":      int64(act.Reporter),
		"target_id":        int64(act.Target),
		"allegation":       act.Allegation,
		"required_votes":   act.RequiredVotes,
		"yes_votes":        status.Yes,
		"no_votes":         status.No,
		"verdict":          status.Verdict.String(),
		"timed_out":        act.TimedOut,
		"appeal_attempted": act.AppealAttempted,
		"appeal_reason":    act.AppealReason,
		"message_ref":      act.MessageRef,
		"text":             status.Text,
		"live":             status.Live,
		"created_at":       act.CreatedAt,
	})
}

// RequestRevote spends the act's appeal and reopens voting
func (h *ActHandler) RequestRevote(c *gin.Context) {
	actID, ok := int64Param(c, "actID")
	if !ok {
		return
	}

	// The body is optional; an empty reason gets the default.
	var input models.RevoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	requester, ok := currentMember(c)
	if !ok {
		return
	}

	trial, err := h.svc.Appeal(c.Request.Context(), actID, requester, input.Reason)
	if err != nil {
		respondError(c, h.logger, err, "Failed to start re-vote")
		return
	}
	h.svc.Start(h.runCtx, trial)

	c.JSON(http.StatusAccepted, gin.H{
		"id":     trial.ActID(),
		"status": dogact.Pending.String(),
	})
}

// ResumeAct restarts adjudication of a pending act whose voting stopped early
func (h *ActHandler) ResumeAct(c *gin.Context) {
	actID, ok := int64Param(c, "actID")
	if !ok {
		return
	}

	trial, err := h.svc.Resume(c.Request.Context(), actID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to resume dog act")
		return
	}
	h.svc.Start(h.runCtx, trial)

	c.JSON(http.StatusAccepted, gin.H{
		"id":     trial.ActID(),
		"status": dogact.Pending.String(),
	})
}

// GetMessage returns a rendered voting message
func (h *ActHandler) GetMessage(c *gin.Context) {
	msg, err := h.board.Message(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

// CastVote clicks one of a message's vote buttons
func (h *ActHandler) CastVote(c *gin.Context) {
	var input models.CastVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be 'yes' or 'no'"})
		return
	}
	side, ok := dogact.ParseSide(input.Side)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be 'yes' or 'no'"})
		return
	}

	voter, ok := currentMember(c)
	if !ok {
		return
	}

	if err := h.board.Submit(c.Param("ref"), voter, side); err != nil {
		switch {
		case errors.Is(err, chat.ErrUnknownMessage):
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		case errors.Is(err, chat.ErrInteractionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Voting has closed"})
		case errors.Is(err, chat.ErrQueueFull):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many pending votes, try again"})
		case errors.Is(err, chat.ErrInvalidChoice):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Choice not offered"})
		default:
			respondError(c, h.logger, err, "Failed to cast vote")
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Vote received"})
}
