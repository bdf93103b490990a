package app

import "github.com/gin-gonic/gin"

const metricsRealm = "muffinbot metrics"

// metricsAuthMiddleware guards /metrics with Basic Auth when enabled.
func metricsAuthMiddleware(enabled bool, username, password string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{username: password}, metricsRealm)
}
