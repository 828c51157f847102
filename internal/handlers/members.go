package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/config"
	"github.com/wejrox/dogbot/internal/dogact"
	"github.com/wejrox/dogbot/internal/models"
)

type MemberHandler struct {
	svc    *adjudication.Service
	cfg    config.Config
	logger *slog.Logger
}

func NewMemberHandler(svc *adjudication.Service, cfg config.Config, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, cfg: cfg, logger: logger}
}

// GetHistory lists the most recent dog acts against a member in a guild
func (h *MemberHandler) GetHistory(c *gin.Context) {
	guildID, ok := int64Param(c, "guildID")
	if !ok {
		return
	}
	memberID, ok := int64Param(c, "memberID")
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	target := dogact.MemberID(memberID)
	acts, err := h.svc.History(ctx, guildID, target, limit)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch history")
		return
	}

	guilty := 0
	lines := make([]string, 0, len(acts))
	for _, act := range acts {
		if act.Verdict() == dogact.Guilty {
			guilty++
		}
		lines = append(lines, act.HistoryLine())
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id":    memberID,
		"display_name": displayNameOr(ctx, h.svc, target),
		"guilty_count": guilty,
		"acts":         lines,
	})
}

// GetDogs returns the guild leaderboard of members found guilty most often
func (h *MemberHandler) GetDogs(c *gin.Context) {
	guildID, ok := int64Param(c, "guildID")
	if !ok {
		return
	}
	n, ok := intQuery(c, "n")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	offenders, err := h.svc.TopOffenders(ctx, guildID, n)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch leaderboard")
		return
	}

	responses := make([]gin.H, 0, len(offenders))
	for i, o := range offenders {
		responses = append(responses, gin.H{
			"rank":         i + 1,
			"title":        dogact.RankTitle(i),
			"member_id":    int64(o.Target),
			"display_name": displayNameOr(ctx, h.svc, o.Target),
			"guilty_count": o.GuiltyCount,
			"last_offense": o.LastOffense,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// UpdateMember sets a member's display name. Members may rename themselves;
// owners may rename anyone.
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	memberID, ok := int64Param(c, "memberID")
	if !ok {
		return
	}

	caller, ok := currentMember(c)
	if !ok {
		return
	}

	// Check if member is updating their own name
	if int64(caller) != memberID && !h.cfg.IsOwner(int64(caller)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only update your own display name"})
		return
	}

	var input models.UpdateMemberRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name is required"})
		return
	}

	if err := h.svc.RememberMember(c.Request.Context(), dogact.MemberID(memberID), input.DisplayName); err != nil {
		respondError(c, h.logger, err, "Failed to update member")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           memberID,
		"display_name": input.DisplayName,
	})
}
