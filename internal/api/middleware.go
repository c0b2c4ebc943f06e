package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"datahub/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// apiKeyAuth accepts the key from the X-API-Key header or the api_key query
// parameter. An empty key disables the check.
func apiKeyAuth(expected string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}

		switch {
		case key == "":
			logger.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("API request without API key")
			abortWithError(c, http.StatusUnauthorized,
				errors.Unauthorized("API key required: set the X-API-Key header or api_key query parameter"))
		case subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1:
			logger.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("API request with invalid API key")
			abortWithError(c, http.StatusForbidden, errors.Unauthorized("invalid API key"))
		default:
			c.Next()
		}
	}
}

// recovery turns a handler panic into a 500 with the usual error body.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		abortWithError(c, http.StatusInternalServerError, errors.InternalError("internal server error"))
	})
}

// requestLogger logs every completed request and puts the logger on the
// request context.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("API request completed")
	}
}
