package controller

import (
	"eduoj/internal/admin"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the user API under /api and the admin API under
// /admin. Everything under /admin except login requires a valid admin token.
func RegisterRoutes(router *gin.Engine, userCtl *UserController, adminCtl *AdminController, auth *admin.AuthService) {
	api := router.Group("/api")
	{
		api.POST("/upload-program", userCtl.UploadProgram)
		api.GET("/get-config", userCtl.GetConfig)
		api.POST("/is-student-valid", userCtl.IsStudentValid)
		api.POST("/user-action-logger", userCtl.LogUserAction)
		api.GET("/status", userCtl.Status)
		api.GET("/heartbeat", userCtl.Heartbeat)
		api.GET("/ws", userCtl.ServeWS)
	}

	adminGroup := router.Group("/admin")
	adminGroup.POST("/login", adminCtl.Login)

	guarded := adminGroup.Group("")
	guarded.Use(AdminAuthMiddleware(auth))
	{
		guarded.POST("/judge-code", adminCtl.JudgeCode)
		guarded.POST("/judge-all", adminCtl.JudgeAll)
		guarded.GET("/get-submissions", adminCtl.GetSubmissions)
		guarded.GET("/scoreboard", adminCtl.Scoreboard)
		guarded.GET("/alerts", adminCtl.Alerts)
		guarded.POST("/alerts/:id/ack", adminCtl.AcknowledgeAlert)
		guarded.POST("/check-alerts", adminCtl.CheckAlerts)
		guarded.GET("/logs", adminCtl.Logs)
		guarded.POST("/restore", adminCtl.Restore)
		guarded.POST("/set-config", adminCtl.SetConfig)
	}
}
