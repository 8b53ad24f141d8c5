package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxListLimit = 1000

func listLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > maxListLimit {
		limit = 100
	}
	return limit
}

// ListPositions 获取位置历史
// GET /api/cars/:vin/positions?since=RFC3339&limit=
func (h *Handler) ListPositions(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since"})
			return
		}
		since = t
	}
	limit := listLimit(c)

	positions, err := h.positions.ListByVIN(c.Request.Context(), v.VIN(), since, limit)
	if err != nil {
		h.logger.Error("Failed to list positions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list positions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  positions,
		"since": since,
		"limit": limit,
	})
}

// ListCommands 获取远程控制记录
func (h *Handler) ListCommands(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	limit := listLimit(c)
	logs, err := h.commands.ListByVIN(c.Request.Context(), v.VIN(), limit)
	if err != nil {
		h.logger.Error("Failed to list commands", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list commands"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs, "limit": limit})
}
