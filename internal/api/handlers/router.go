package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 会话
		api.GET("/session", h.GetSession)
		api.POST("/session/login", h.Login)
		api.POST("/session/logout", h.Logout)

		// 出行方式
		api.GET("/modes", h.ListModes)
		api.GET("/modes/:mode", h.GetMode)

		// 行程
		api.GET("/trips", h.ListTrips)
		api.POST("/trips", h.CreateTrip)
		api.GET("/trips/:id", h.GetTrip)
		api.GET("/trips/:id/summary", h.GetTripSummary)
		api.GET("/trips/:id/form", h.GetTripForm)
		api.PATCH("/trips/:id", h.UpdateTrip)
		api.PUT("/trips/:id/fields/:field", h.UpdateTripField)
		api.POST("/trips/:id/start", h.StartTrip)
		api.POST("/trips/:id/end", h.EndTrip)
		api.POST("/trips/:id/calculate", h.CalculateTrip)
		api.POST("/trips/:id/save", h.SaveTrip)
		api.POST("/trips/:id/reset", h.ResetTrip)
		api.DELETE("/trips/:id", h.DeleteTrip)

		// 设备传感器
		api.POST("/trips/:id/positions", h.PushPosition)
		api.POST("/trips/:id/position-errors", h.PushPositionError)
		api.POST("/trips/:id/motion", h.PushMotion)
		api.GET("/trips/:id/stream", h.SensorStream)

		// 参考数据
		api.GET("/trips/:id/car/makes", h.CarMakes)
		api.GET("/trips/:id/car/models", h.CarModels)
		api.GET("/trips/:id/airports", h.SearchAirports)

		// 归档
		api.GET("/history", h.ListHistory)
		api.GET("/history/:id", h.GetHistoryEntry)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}
