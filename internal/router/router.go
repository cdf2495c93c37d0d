package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/holidaibutler/texelmaps-booking/internal/config"
	"github.com/holidaibutler/texelmaps-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/holidaibutler/texelmaps-booking/internal/middleware" // import middleware for JWT auth, rate limiting and caching
	"github.com/holidaibutler/texelmaps-booking/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the guest-facing endpoints: browsing POIs,
// checking availability and running a booking through its lifecycle.
// The Redis client may be nil, in which case caching and rate limiting
// are skipped entirely and every request hits the handlers directly.
func RegisterPublic(e *echo.Echo, av *handler.AvailabilityHandler, bk *handler.BookingHandler, poi *handler.POIHandler, rdb *redis.Client) {
	g := e.Group("/v1")

	// Cache the read-heavy browse endpoints for a few seconds.  The
	// availability numbers may lag reality by the TTL; the guarded
	// reserve is what actually protects capacity, so a stale read only
	// costs the guest a 409 at booking time.
	reads := g.Group("")
	if rdb != nil {
		reads.Use(middleware.ResponseCache(config.LoadCacheConfig(), rdb))
	}
	reads.GET("/pois", poi.List)
	reads.GET("/pois/:id", poi.Get)
	reads.GET("/availability/:poiId", av.Get)

	// Rate limit the write path per client IP so a misbehaving client
	// cannot burn through held inventory.
	writes := g.Group("")
	if rdb != nil {
		writes.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	writes.POST("/bookings", bk.Start)
	writes.GET("/bookings/:id", bk.Get)
	// Payment webhook endpoints.  The payment module retries these, so
	// both handlers are idempotent.
	writes.POST("/bookings/:id/confirm", bk.Confirm)
	writes.POST("/bookings/:id/cancel", bk.Cancel)
}

// RegisterValidation registers device login and the JWT-protected scan
// endpoint.  Device login is open; the scan requires the VALIDATOR
// role issued at login.
func RegisterValidation(e *echo.Echo, auth *handler.DeviceAuthHandler, val *handler.ValidateHandler, jwtSecret string) {
	e.POST("/v1/auth/device", auth.Login)

	protected := e.Group("/v1")
	// Apply the JWTAuth middleware to the protected group using the provided secret.
	protected.Use(middleware.JWTAuth(jwtSecret))
	protected.POST("/validate", val.Validate, middleware.RequireRole(utils.RoleValidator))
}

// RegisterOps registers back-office endpoints behind the OPERATOR
// role.  Operator tokens are minted by the admin back office with the
// same shared secret.
func RegisterOps(e *echo.Echo, ops *handler.OpsHandler, jwtSecret string) {
	g := e.Group("/v1/ops")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("OPERATOR"))
	g.GET("/reversals", ops.Reversals)
	g.GET("/bookings/:reference", ops.BookingByReference)
}
