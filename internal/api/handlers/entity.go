package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/entity"
)

// ListEntities 获取车辆全部实体
func (h *Handler) ListEntities(c *gin.Context) {
	r, ok := h.registry(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   r.Views(),
		"device": r.Device(),
	})
}

// GetEntity 获取单个实体
func (h *Handler) GetEntity(c *gin.Context) {
	r, ok := h.registry(c)
	if !ok {
		return
	}

	d, err := r.Get(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d.View()})
}

type actionRequest struct {
	Value any `json:"value"`
}

// EntityAction 执行实体动作
// POST /api/cars/:vin/entities/:key/:action  body: {"value": ...}
func (h *Handler) EntityAction(c *gin.Context) {
	r, ok := h.registry(c)
	if !ok {
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, action := c.Param("key"), c.Param("action")
	success, err := r.Do(c.Request.Context(), key, action, req.Value)
	switch {
	case errors.Is(err, entity.ErrUnknownEntity):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	case errors.Is(err, entity.ErrUnsupportedAction), errors.Is(err, entity.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Entity action failed",
			zap.String("vin", r.VIN()),
			zap.String("entity", key),
			zap.String("action", action),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"success": success}})
}
