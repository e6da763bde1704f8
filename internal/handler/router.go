package handler

import (
	"net/http"
	"time"

	"greencity/config"
	"greencity/internal/auth"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Reports       *ReportHandler
	AI            *AIHandler
	Sessions      *SessionHandler
	Users         *UserHandler
	Partners      *PartnerHandler
	Notifications *NotificationHandler
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("panic", recovered).Error("http: recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func NewRouter(cfg config.ServerConfig, mw *auth.Middleware, h Handlers) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := mw.Require(auth.Authenticated)
	reviewers := mw.Require(auth.ExpertOrAuthority)
	authority := mw.Require(auth.AuthorityOnly)

	reports := router.Group("/reports")
	{
		reports.POST("", authed, h.Reports.CreateReport)
		reports.GET("", authed, h.Reports.GetReports)
		reports.GET("/map", authed, h.Reports.GetReportMap)
		reports.POST("/vote", authed, h.Reports.Vote)
		reports.GET("/:id", authed, h.Reports.GetReportByID)
		reports.PATCH("/:id/status", reviewers, h.Reports.UpdateStatus)
		reports.POST("/:id/comments", authed, h.Reports.AddComment)
	}

	ai := router.Group("/ai")
	{
		ai.POST("/analyze", reviewers, h.AI.Analyze)
		ai.GET("/analysis", authed, h.AI.GetAnalysis)
		ai.POST("/batch-analyze", reviewers, h.AI.BatchAnalyze)
	}

	voting := router.Group("/voting")
	{
		voting.POST("/sessions", authority, h.Sessions.CreateSession)
		voting.GET("/sessions", authed, h.Sessions.GetSessions)
		voting.POST("/vote", authed, h.Sessions.Vote)
		voting.GET("/sessions/:id/results", authed, h.Sessions.GetResults)
		voting.PATCH("/sessions/:id/close", authority, h.Sessions.CloseSession)
	}

	users := router.Group("/users")
	{
		users.POST("/register", h.Users.Register)
		users.POST("/login", h.Users.Login)
		users.GET("/me", authed, h.Users.Me)
		users.PATCH("/me", authed, h.Users.UpdateMe)
		users.DELETE("/me", authed, h.Users.DeleteUser)
		users.PATCH("/role", authority, h.Users.UpdateRole)
		users.GET("", reviewers, h.Users.GetUsers)
		users.DELETE("/:id", authed, h.Users.DeleteUser)
	}

	partners := router.Group("/partners")
	{
		partners.POST("", authority, h.Partners.CreatePartner)
		partners.GET("", h.Partners.GetPartners)
	}

	notifications := router.Group("/notifications", authed)
	{
		notifications.GET("", h.Notifications.GetNotifications)
		notifications.GET("/stream", h.Notifications.StreamNotifications)
		notifications.PATCH("/:id/read", h.Notifications.MarkAsRead)
		notifications.PATCH("/read-all", h.Notifications.MarkAllAsRead)
	}

	return router
}
