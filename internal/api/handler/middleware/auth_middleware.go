package middleware

import (
	"net/http"
	"strings"

	flow "github.com/Dipanshuofficial/Flow"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/response"
	"github.com/Dipanshuofficial/Flow/pkg"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthMiddleware requires a bearer JWT. Dev mode without a secret runs open.
func AuthMiddleware(cfg flow.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.IsDev() && cfg.JWTConfig.Secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.APIError{Message: "Authorization header required"})
			return
		}

		// Bearer token format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.APIError{Message: "Invalid authorization header format"})
			return
		}

		claims, err := pkg.ValidateToken(parts[1], cfg.JWTConfig.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.APIError{Message: "Invalid or expired token"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("userEmail", claims.Email)
		c.Next()
	}
}

// RequestLogger logs every request through zerolog once it has been served.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("Request served")
	}
}
