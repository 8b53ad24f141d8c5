package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/api/lixiang"
	"github.com/langchou/lxgazer/internal/camera"
	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/internal/state"
)

// ListCars 获取车辆列表
func (h *Handler) ListCars(c *gin.Context) {
	vehicles := h.manager.List()
	cars := make([]map[string]any, 0, len(vehicles))
	for _, v := range vehicles {
		cars = append(cars, v.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// GetCar 获取车辆详情
func (h *Handler) GetCar(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	data := gin.H{
		"summary": v.Summary(),
		"link":    v.Machine().GetState(),
		"refresh": gin.H{
			service.CycleFast: cycleInfo(v.Fast().LastUpdate(), v.Fast().LastError()),
			service.CycleSlow: cycleInfo(v.Slow().LastUpdate(), v.Slow().LastError()),
		},
	}
	if r, ok := h.registries[v.VIN()]; ok {
		data["device"] = r.Device()
	}
	if h.cars != nil {
		if car, err := h.cars.GetByVIN(c.Request.Context(), v.VIN()); err == nil {
			data["profile"] = car
		} else {
			h.logger.Debug("Car profile not found", zap.String("vin", v.VIN()), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func cycleInfo(last time.Time, err error) gin.H {
	info := gin.H{"last_update": nil, "error": nil}
	if !last.IsZero() {
		info["last_update"] = last
	}
	if err != nil {
		info["error"] = err.Error()
	}
	return info
}

// GetCarState 获取车辆原始数据（按数据域）
func (h *Handler) GetCarState(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	s := v.Store()
	updated := make(map[state.Domain]any, len(state.Domains))
	for _, d := range state.Domains {
		if t := s.UpdatedAt(d); !t.IsZero() {
			updated[d] = t
		} else {
			updated[d] = nil
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"vin":        v.VIN(),
			"link":       v.Machine().CurrentState(),
			"payloads":   s.Snapshot(),
			"updated_at": updated,
		},
	})
}

// RefreshCar 立即执行一次快速刷新
// POST /api/cars/:vin/refresh
func (h *Handler) RefreshCar(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	if err := v.Fast().Refresh(c.Request.Context()); err != nil {
		h.logger.Warn("Manual refresh failed", zap.String("vin", v.VIN()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": v.Summary()})
}

type credentialsRequest struct {
	APIKey   string `json:"api_key" binding:"required"`
	APISign  string `json:"api_sign" binding:"required"`
	APIToken string `json:"api_token" binding:"required"`
	DeviceID string `json:"device_id"`
}

// UpdateCredentials 验证并替换车辆凭据
// PUT /api/cars/:vin/credentials
func (h *Handler) UpdateCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creds := lixiang.Credentials{
		APIKey:   req.APIKey,
		APISign:  req.APISign,
		APIToken: req.APIToken,
		DeviceID: req.DeviceID,
	}
	err := h.manager.UpdateCredentials(c.Request.Context(), c.Param("vin"), creds)
	switch {
	case errors.Is(err, service.ErrVehicleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
	case err != nil:
		h.logger.Error("Failed to update credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Credentials updated"})
	}
}

type apiRequest struct {
	API     string            `json:"api" binding:"required"`
	Params  map[string]any    `json:"params"`
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method"`
}

// RequestAPI 透传一次签名请求，返回解析后的载荷
// POST /api/cars/:vin/request
func (h *Handler) RequestAPI(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	var req apiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var opts []lixiang.RequestOption
	if req.Method != "" {
		opts = append(opts, lixiang.WithMethod(req.Method))
	}
	if len(req.Headers) > 0 {
		opts = append(opts, lixiang.WithHeaders(req.Headers))
	}

	data := v.Client().Request(c.Request.Context(), req.API, req.Params, opts...)
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// GetCameraImage 停车照片拼图
// GET /api/cars/:vin/camera.jpg?width=&height=
func (h *Handler) GetCameraImage(c *gin.Context) {
	v, ok := h.vehicle(c)
	if !ok {
		return
	}

	width, werr := sizeParam(c.Query("width"))
	height, herr := sizeParam(c.Query("height"))
	if werr != nil || herr != nil || camera.ValidSize(width, height) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid size"})
		return
	}

	s := v.Store()
	buf, err := v.Camera().JPEG(c.Request.Context(), s.PhotoURLs(), s.PhotoTime(), width, height)
	if err != nil {
		if errors.Is(err, camera.ErrNoPhotos) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No parking photos"})
			return
		}
		h.logger.Error("Failed to merge photos", zap.String("vin", v.VIN()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", buf)
}

func sizeParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
