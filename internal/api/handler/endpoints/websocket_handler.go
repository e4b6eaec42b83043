package endpoints

import (
	flow "github.com/Dipanshuofficial/Flow"
	"github.com/Dipanshuofficial/Flow/internal/realtime"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler mounts the push channel the canvas listens on for state,
// notification and export phase messages.
func WebSocketHandler(router gin.IRouter, hub *realtime.Hub, cfg flow.AppConfig) {
	secret := cfg.JWTConfig.Secret
	router.GET("/api/v1/flow/ws", func(c *gin.Context) {
		realtime.ServeWS(hub, secret, c.Writer, c.Request)
	})
}
