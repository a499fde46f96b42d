package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/api/handler"
	"github.com/msyamrijal/jadwal-website/internal/api/middleware"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/pkg/jwt"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
	"github.com/msyamrijal/jadwal-website/pkg/redis"
)

// auth endpoints: 10 requests per minute per IP
const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Setup builds the gin engine. rdb may be nil; the blacklist and rate
// limit are then skipped.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// nil *redis.Client must stay a nil interface
	var (
		bl middleware.Blacklist
		rl middleware.RateLimiter
	)
	if rdb != nil {
		bl, rl = rdb, rdb
	}

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	authn := middleware.JWTAuth(jwtMgr, bl, logger)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)
	limited := middleware.RateLimit(rl, authRateLimit, authRateWindow)

	// ── ops ──
	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/ws", authn, h.Realtime.Connect)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// public
		auth := v1.Group("/auth")
		{
			auth.POST("/register", limited, h.Auth.Register)
			auth.POST("/login", limited, h.Auth.Login)
			auth.POST("/refresh", limited, h.Auth.RefreshToken)
			auth.POST("/password/forgot", limited, h.Auth.ForgotPassword)
			auth.POST("/password/reset", limited, h.Auth.ResetPassword)
		}
		v1.GET("/push/vapid-public-key", h.Push.PublicKey)
		v1.GET("/feeds/:token/calendar.ics", h.Agenda.CalendarFeed)

		authorized := v1.Group("")
		authorized.Use(authn)
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/users/me/display-name", h.User.UpdateDisplayName)

			schedules := authorized.Group("/schedules")
			{
				schedules.POST("", h.Schedule.Create)
				schedules.GET("", adminOnly, h.Schedule.List)
				schedules.GET("/search", h.Schedule.Search)
				schedules.POST("/bulk-replace", adminOnly, h.Schedule.BulkReplace)
				schedules.POST("/import", adminOnly, h.Import.Import)
				schedules.GET("/:id", h.Schedule.Get)
				schedules.PUT("/:id", h.Schedule.Update) // participants or admin, checked in the service
				schedules.DELETE("/:id", adminOnly, h.Schedule.Delete)
				schedules.POST("/:id/actions", adminOnly, h.Schedule.Action)
			}

			authorized.GET("/export/schedules", adminOnly, h.Export.ExportSchedules)

			agenda := authorized.Group("/agenda")
			{
				agenda.GET("", adminOnly, h.Agenda.Summary)
				agenda.GET("/me", h.Agenda.MyAgenda)
				agenda.GET("/me/feed", h.Agenda.FeedLink)
			}

			push := authorized.Group("/push/subscriptions")
			{
				push.POST("", h.Push.Subscribe)
				push.DELETE("", h.Push.Unsubscribe)
			}

			authorized.POST("/notifications/run", adminOnly, h.Notification.Run)
		}
	}

	return r
}
