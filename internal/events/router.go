package events

import (
	"github.com/gin-gonic/gin"
)

// SetupEventRoutes registers public browsing routes and admin routes guarded by adminAuth
func SetupEventRoutes(router *gin.RouterGroup, controller Controller, adminAuth ...gin.HandlerFunc) {
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.GetAllEvents)
		publicEvents.GET("/:id", controller.GetEvent)
	}

	adminEvents := router.Group("/admin/events")
	adminEvents.Use(adminAuth...)
	{
		adminEvents.POST("", controller.CreateEvent)
	}
}
