package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/entity"
	"github.com/langchou/lxgazer/internal/models"
	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/pkg/ws"
)

// CarGetter 车辆档案查询
type CarGetter interface {
	GetByVIN(ctx context.Context, vin string) (*models.Car, error)
}

// PositionLister 位置历史查询
type PositionLister interface {
	ListByVIN(ctx context.Context, vin string, since time.Time, limit int) ([]*models.Position, error)
}

// CommandLister 指令记录查询
type CommandLister interface {
	ListByVIN(ctx context.Context, vin string, limit int) ([]*models.CommandLog, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger     *zap.Logger
	manager    *service.Manager
	registries map[string]*entity.Registry
	cars       CarGetter
	positions  PositionLister
	commands   CommandLister
	wsHub      *ws.Hub
	debug      bool
	upgrader   websocket.Upgrader
}

// Options 可选依赖，历史查询在没有数据库时为空
type Options struct {
	Cars      CarGetter
	Positions PositionLister
	Commands  CommandLister
	Hub       *ws.Hub
	Debug     bool
}

// NewHandler 创建处理器
func NewHandler(logger *zap.Logger, manager *service.Manager, registries map[string]*entity.Registry, opts Options) *Handler {
	return &Handler{
		logger:     logger,
		manager:    manager,
		registries: registries,
		cars:       opts.Cars,
		positions:  opts.Positions,
		commands:   opts.Commands,
		wsHub:      opts.Hub,
		debug:      opts.Debug,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 前端与 API 分开部署
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 车辆
		api.GET("/cars", h.ListCars)
		api.GET("/cars/:vin", h.GetCar)
		api.GET("/cars/:vin/state", h.GetCarState)
		api.POST("/cars/:vin/refresh", h.RefreshCar)
		api.PUT("/cars/:vin/credentials", h.UpdateCredentials)
		api.GET("/cars/:vin/camera.jpg", h.GetCameraImage)

		// 实体
		api.GET("/cars/:vin/entities", h.ListEntities)
		api.GET("/cars/:vin/entities/:key", h.GetEntity)
		api.POST("/cars/:vin/entities/:key/:action", h.EntityAction)

		// 历史
		if h.positions != nil {
			api.GET("/cars/:vin/positions", h.ListPositions)
		}
		if h.commands != nil {
			api.GET("/cars/:vin/commands", h.ListCommands)
		}

		// 调试：透传请求到车辆云端
		if h.debug {
			api.POST("/cars/:vin/request", h.RequestAPI)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.wsHub != nil {
		r.GET("/ws", h.HandleWebSocket)
	}

	r.GET("/health", h.HealthCheck)
}

// vehicle 解析路径中的 VIN，找不到时写入 404
func (h *Handler) vehicle(c *gin.Context) (*service.Vehicle, bool) {
	v, err := h.manager.Get(c.Param("vin"))
	if err != nil {
		if errors.Is(err, service.ErrVehicleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return v, true
}

func (h *Handler) registry(c *gin.Context) (*entity.Registry, bool) {
	r, ok := h.registries[c.Param("vin")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
		return nil, false
	}
	return r, true
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !client.Register() {
		conn.Close()
		return
	}

	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	links := make(map[string]string)
	for _, v := range h.manager.List() {
		links[v.VIN()] = v.Machine().CurrentState()
	}
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.ClientCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"vehicles":   links,
		"ws_clients": clients,
	})
}
