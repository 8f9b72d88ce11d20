package routes

import (
	"GuardianAI/controllers"
	"GuardianAI/middlewares"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, jwtSecret string) {
	r.GET("/health", controllers.Health)

	// Device ingest: the child_hash is the only credential
	r.GET("/ws/ingest/:child_hash/", controllers.ServeIngestWs)
	r.GET("/ws/ingest-auth/", controllers.ServeIngestAuthWs)
	r.Any("/api/ingest/", controllers.IngestTelemetry)

	auth := middlewares.GuardianAuth(jwtSecret)
	r.GET("/ws/live/:child_hash", auth, controllers.ServeLiveWs)
	r.GET("/debug/auth", auth, controllers.DebugAuth)
	r.POST("/debug/push", auth, controllers.SendTestPush)

	api := r.Group("/api")
	api.Use(auth)
	{
		api.POST("/guardians/children", controllers.LinkChild)
		api.GET("/children/:child_hash/dashboard", controllers.GetDashboard)
		api.GET("/children/:child_hash/screen-time/daily", controllers.GetDailyTotals)
		api.GET("/children/:child_hash/screen-time/top-apps", controllers.GetTopApps)
		api.GET("/children/:child_hash/locations", controllers.GetLocations)
		api.GET("/children/:child_hash/site-access", controllers.GetSiteAccess)
	}
}
