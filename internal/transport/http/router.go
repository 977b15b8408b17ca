package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/health"
	"github.com/fjfoyain/reservation-boss/internal/middleware"
	"github.com/fjfoyain/reservation-boss/internal/monitoring"
	"github.com/fjfoyain/reservation-boss/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	ReservationService  *service.ReservationService
	CancellationService *service.CancellationService
	ReportService       *service.ReportService
	AdminAuth           *middleware.AdminAuth
	Metrics             *monitoring.Metrics
	HealthChecker       *health.HealthChecker
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 预订请求体都很小，1MB 上限足够
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
		router.Use(middleware.BusinessMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	reservationHandler := NewReservationHandler(deps.ReservationService, deps.Logger)
	cancellationHandler := NewCancellationHandler(deps.CancellationService, deps.Logger)
	adminHandler := NewAdminHandler(deps.ReservationService, deps.ReportService, deps.Logger)

	// 验证码发送代价较高（触发外发邮件），单独按 IP 限流
	codeRateLimit := middleware.NewIPRateLimit(1, 5)

	// 健康检查与监控端点
	router.GET("/health", reservationHandler.Health)
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/health/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// ========== Public Routes ==========
	router.GET("/config", reservationHandler.Config)
	router.POST("/reserve", reservationHandler.Reserve)
	router.GET("/reservations/week", reservationHandler.Week)
	router.GET("/summary/week", reservationHandler.Summary)

	// ========== Cancellation Routes ==========
	cancellationRoutes := router.Group("/cancellation")
	{
		cancellationRoutes.POST("/request-code", codeRateLimit.Handler(), cancellationHandler.RequestCode)
		cancellationRoutes.POST("/verify-and-cancel", cancellationHandler.VerifyAndCancel)
	}

	// ========== Admin Routes ==========
	admin := deps.AdminAuth.RequireAdmin()
	router.GET("/reservations", admin, adminHandler.ListReservations)
	router.DELETE("/clear-reservations", admin, adminHandler.ClearReservations)
	router.DELETE("/release/:id", admin, adminHandler.ReleaseReservation)
	router.DELETE("/delete-old-reservations", admin, adminHandler.CleanupReservations)

	reportRoutes := router.Group("/reports")
	reportRoutes.Use(admin)
	{
		reportRoutes.GET("/weekly", adminHandler.WeeklyReport)
		reportRoutes.GET("/monthly-csv", adminHandler.MonthlyCSV)
	}

	return router
}
