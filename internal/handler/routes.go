package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Every path
// outside the proxy namespace (and the operational endpoints) is rejected
// with 501 before the fetcher is ever invoked.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy-status", health.Status)

	e.Any("/proxy", proxy.Handle)
	e.Any("/proxy/*", proxy.Handle)

	e.Any("/", proxy.NotImplemented)
	e.Any("/*", proxy.NotImplemented)
}
