package http

import (
	"time"

	"tonkserver/common/log"
)

// CorsMiddleware allows the configured origins to reach the HTTP API.
// The websocket upgrade path does not go through this middleware; its
// gorilla Upgrader's CheckOrigin accepts every origin.
func CorsMiddleware(allowedOrigins []string) MiddlewareFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *Context) error {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.SetHeader("Access-Control-Allow-Origin", origin)
			c.SetHeader("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			c.SetHeader("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
			c.SetHeader("Access-Control-Allow-Credentials", "true")
		}

		if c.Method() == "OPTIONS" {
			c.AbortWithStatus(204)
		}
		return nil
	}
}

// LoggerMiddleware records method, path and latency for each request.
func LoggerMiddleware() MiddlewareFunc {
	return func(c *Context) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		defer func() {
			log.Info("http %s %s from %s in %v", method, path, c.ClientIP(), time.Since(start))
		}()
		c.ginCtx.Next()
		return nil
	}
}

// RecoveryMiddleware turns a panic inside a handler into a 500 instead
// of taking down the process.
func RecoveryMiddleware() MiddlewareFunc {
	return func(c *Context) error {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered: %v", err)
				c.InternalServerError("internal server error")
			}
		}()
		c.ginCtx.Next()
		return nil
	}
}
