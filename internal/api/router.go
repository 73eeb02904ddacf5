package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/middleware"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
	"github.com/r41nm4k3r/AutopassGui/internal/websocket"
)

// Router API路由器
type Router struct {
	engine   *gin.Engine
	db       *gorm.DB
	config   *config.Config
	services *service.Services

	deviceAPI  *DeviceAPI
	vaultAPI   *VaultAPI
	sendLogAPI *SendLogAPI
	authAPI    *AuthAPI
	wsHandler  *WebSocketHandler

	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
// 服务、推送中心和通知器由调用方创建并注入，路由器只负责HTTP装配
func NewRouter(
	db *gorm.DB,
	cfg *config.Config,
	services *service.Services,
	hub *websocket.Hub,
	notifier *websocket.StatusNotifier,
	log *zap.Logger,
) *Router {
	// 按配置设置运行模式
	switch cfg.Server.Mode {
	case "production", "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS())

	router := &Router{
		engine:         engine,
		db:             db,
		config:         cfg,
		services:       services,
		deviceAPI:      NewDeviceAPI(services.Device, log),
		vaultAPI:       NewVaultAPI(services.Vault, notifier, log),
		sendLogAPI:     NewSendLogAPI(services.SendLog),
		authAPI:        NewAuthAPI(services.Auth),
		wsHandler:      NewWebSocketHandler(hub, services.Device, &cfg.WebSocket, log),
		authMiddleware: middleware.NewAuthMiddleware(services.Auth, services.JWT()),
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authAPI.Login)
			auth.POST("/refresh", r.authAPI.RefreshToken)

			// 需要认证的路由
			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.POST("/logout", r.authAPI.Logout)
				authRequired.POST("/password", r.authAPI.UpdatePassword)
			}
		}

		// 设备管理路由，查询开放、连接操作需要认证
		device := v1.Group("/device")
		{
			device.GET("/ports", r.deviceAPI.ListPorts)
			device.GET("/status", r.deviceAPI.GetStatus)

			deviceRequired := device.Group("")
			deviceRequired.Use(r.authMiddleware.RequireAuth())
			{
				deviceRequired.POST("/connect", r.deviceAPI.Connect)
				deviceRequired.POST("/disconnect", r.deviceAPI.Disconnect)
			}
		}

		// 密码槽路由，查询开放、修改和下发需要认证
		slots := v1.Group("/slots")
		{
			slots.GET("", r.vaultAPI.ListSlots)
			slots.GET("/:no", r.vaultAPI.GetSlot)

			slotsRequired := slots.Group("")
			slotsRequired.Use(r.authMiddleware.RequireAuth())
			{
				slotsRequired.PUT("/:no/label", r.vaultAPI.RenameSlot)
				slotsRequired.PUT("/:no/sequence", r.vaultAPI.SetSequence)
				slotsRequired.POST("/:no/send", r.vaultAPI.SendSlot)
				slotsRequired.POST("/reset", r.vaultAPI.ResetSlots)
			}
		}

		// 自定义命令路由
		commands := v1.Group("/commands")
		commands.Use(r.authMiddleware.RequireAuth())
		{
			commands.POST("/send", r.vaultAPI.SendCustom)
		}

		// 发送历史路由
		r.sendLogAPI.RegisterRoutes(v1, r.authMiddleware.RequireAuth())
	}

	// WebSocket状态推送
	r.engine.GET("/ws", r.authMiddleware.RequireAuth(), r.wsHandler.Handle)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	status := r.services.Device.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"device": gin.H{
			"connected": status.Connected,
			"port":      status.Port,
			"mock":      status.Mock,
		},
		"ws_clients": r.wsHandler.OnlineCount(),
		"timestamp":  time.Now().Unix(),
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
