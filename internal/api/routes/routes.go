package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	Session   *handlers.SessionHandler
	Admin     *handlers.AdminHandler
	WS        *handlers.WSHandler

	JWT    middleware.JWTConfig
	Logger *logrus.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.CORS())
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(d.Logger))
	}

	r.GET("/health", d.Session.Health)

	api := r.Group("/api")
	api.POST("/interview/initialize", d.Interview.Initialize)
	api.POST("/interview/submit", d.Interview.Submit)
	api.GET("/interview/results/:evaluation_id", d.Interview.Results)
	api.POST("/interview/transcribe", d.Interview.Transcribe)

	api.GET("/sessions/:session_id", d.Session.Get)
	api.DELETE("/sessions/:session_id", d.Session.Delete)

	// Operator routes (JWT)
	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(d.JWT), middleware.RequireAdmin())
	admin.GET("/stats", d.Admin.Stats)
	admin.POST("/cleanup", d.Admin.Cleanup)
	admin.GET("/reports", d.Admin.Reports)

	// WebSocket
	r.GET("/ws/interview/:session_id", d.WS.InterviewWS)
}
