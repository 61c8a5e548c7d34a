package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/auth"
	jwtpkg "datavault/backend/internal/auth/jwt"
	"datavault/backend/internal/config"
	"datavault/backend/internal/health"
	"datavault/backend/internal/mailer"
	"datavault/backend/internal/middleware"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/service"
	"datavault/backend/internal/storage"
	"datavault/backend/internal/storage/memory"
	"datavault/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	AliasService *service.AliasService
	Resolver     *service.Resolver
	DeliveryLog  *service.DeliveryLog
	AuthService  *auth.Service
	JWTManager   *jwtpkg.Manager
	Hub          *websocket.Hub // 为空时不注册 /api/ws
	Health       *health.HealthChecker
	Metrics      *monitoring.Metrics
	RateLimiter  storage.RateLimitRepository
	Sender       mailer.Sender
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = memory.NewRateLimiter()
	}

	router := gin.New()

	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitoringMW.PanicRecovery())
	router.Use(monitoringMW.HTTPMetrics())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderCloudflareEmail},
		ExposeHeaders: []string{
			"Content-Length",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	allowAll := len(corsConfig.AllowOrigins) == 0
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	if allowAll {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(gincors.New(corsConfig))

	aliasHandler := NewAliasHandler(deps.AliasService, deps.DeliveryLog, log)
	authHandler := NewAuthHandler(deps.AuthService, log)
	webhookHandler := NewWebhookHandler(deps.Resolver, deps.Sender, deps.Metrics, log)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, log)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/health", healthStatus(deps.Health))
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// ========== API Routes ==========
	api := router.Group("/api")
	api.Use(middleware.RateLimit(deps.RateLimiter, "api", cfg.RateLimit.APIRequests, cfg.RateLimit.APIWindow, deps.Metrics, log))
	api.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		aliasRoutes := api.Group("/aliases")
		aliasRoutes.Use(jwtAuth.RequireAuth()) // 所有别名路由都需要认证
		{
			aliasRoutes.POST("", aliasHandler.Create)
			aliasRoutes.GET("", aliasHandler.List)
			aliasRoutes.GET("/:alias", aliasHandler.Get)
			aliasRoutes.DELETE("/:alias", aliasHandler.Delete)
			aliasRoutes.PATCH("/:alias/toggle", aliasHandler.Toggle)
			aliasRoutes.GET("/:alias/logs", aliasHandler.Logs)
		}

		// 浏览器无法为 WebSocket 设置请求头，令牌通过 ?token= 传递
		if deps.Hub != nil {
			api.GET("/ws", jwtAuth.RequireAuth(), websocket.HandleWebSocket(deps.Hub))
		}
	}

	// ========== Webhook Routes ==========
	webhook := router.Group("/webhook")
	webhook.Use(middleware.RateLimit(deps.RateLimiter, "webhook", cfg.RateLimit.WebhookRequests, cfg.RateLimit.WebhookWindow, deps.Metrics, log))
	webhook.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	{
		webhook.POST("/email", webhookHandler.ReceiveEmail)
		webhook.GET("/test-smtp", webhookHandler.TestSMTP)
	}

	router.NoRoute(func(c *gin.Context) {
		Fail(c, http.StatusNotFound, "route_not_found", "Route not found")
	})

	return router
}
