package waitlist

import (
	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes configures all waitlist routes. auth is applied to every
// route except the health check.
func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller, auth ...gin.HandlerFunc) {
	waitlist := rg.Group("/waitlist")
	{
		waitlist.GET("/health", controller.HealthCheck)

		authenticated := waitlist.Group("")
		authenticated.Use(auth...)
		{
			authenticated.GET("/me", controller.GetMyEntries)
			authenticated.POST("/:event_id", controller.JoinWaitlist)
			authenticated.DELETE("/:event_id", controller.LeaveWaitlist)
			authenticated.GET("/:event_id/me", controller.GetMyEntry)
			authenticated.POST("/entries/:entry_id/respond", controller.RespondToOffer)
		}
	}

	// Management routes, guarded per event by the controller's Authorizer
	admin := rg.Group("/admin/waitlist")
	admin.Use(auth...)
	{
		admin.POST("/expire", controller.ExpireOffers)
		admin.GET("/:event_id", controller.GetWaitlistEntries)
		admin.GET("/:event_id/count", controller.CountWaitlistEntries)
		admin.GET("/:event_id/stats", controller.GetWaitlistStats)
		admin.PUT("/:event_id/order", controller.ReorderWaitlist)
		admin.POST("/:event_id/notify", controller.NotifyWaitlist)
		admin.POST("/:event_id/promote", controller.PromoteParticipant)
		admin.POST("/:event_id/auto-promote", controller.AutoPromote)
	}
}
