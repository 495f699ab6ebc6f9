package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Gin context keys and headers set by RequestContext
const (
	RequestIDKey    = "request_id"
	ClientIPKey     = "client_ip"
	RequestIDHeader = "X-Request-ID"
)

// maxRequestIDLength bounds ids accepted from upstream proxies.
const maxRequestIDLength = 128

// RequestContext stores a request id and the client IP in the gin context.
// An X-Request-ID header from a proxy is reused when present.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		// Gin's ClientIP() handles X-Forwarded-For and other headers
		c.Set(ClientIPKey, c.ClientIP())
		c.Next()
	}
}

// GetRequestID returns the id set by RequestContext, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// GetClientIP returns the IP set by RequestContext, falling back to gin's
// ClientIP.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(ClientIPKey); ip != "" {
		return ip
	}
	return c.ClientIP()
}
