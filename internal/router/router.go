package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/bus-ticketing/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/bus-ticketing/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated surfaces: trip browsing,
// guest ticket lookup and the provider callback endpoints.  Browsing
// sits behind the response cache; the OTP routes carry the token-bucket
// rate limiter because they are the brute-forceable surface.  Provider
// callbacks are authenticated by their HMAC signatures, not by JWTs.
func RegisterPublic(e *echo.Echo, trips *handler.TripHandler, lookup *handler.LookupHandler, payments *handler.PaymentHandler, cache echo.MiddlewareFunc, ratelimit echo.MiddlewareFunc) {
	// Public trip browse, cacheable.
	e.GET("/v1/trips", trips.SearchTrips, cache)
	e.GET("/v1/trips/:id", trips.GetTrip, cache)

	// Guest lookup: request a code, then trade code for tickets.
	g := e.Group("/v1/tickets/lookup", ratelimit)
	g.POST("/request-otp", lookup.RequestOTP)
	g.POST("/verify-otp", lookup.VerifyOTP)

	// Provider notification endpoints.  VNPay delivers results as GET
	// query parameters; the wallets POST JSON bodies.
	e.GET("/v1/payments/vnpay/ipn", payments.VNPayIPN)
	e.POST("/v1/payments/momo/ipn", payments.MoMoIPN)
	e.POST("/v1/payments/zalopay/callback", payments.ZaloPayCallback)
}

// RegisterTickets registers the staff-scoped ticket operations under
// /v1.  All routes require a valid JWT and an OPERATOR or AGENT role:
// issuance, state reads, download, cancellation and exchange are
// counter and call-centre operations performed on the passenger's
// behalf.
func RegisterTickets(e *echo.Echo, tickets *handler.TicketHandler, cancels *handler.CancelHandler, changes *handler.ChangeHandler, jwtSecret string) {
	g := e.Group(
		"/v1/tickets",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OPERATOR", "AGENT"),
	)
	g.POST("/generate", tickets.Generate)
	g.GET("/:id", tickets.Get)
	g.GET("/booking/:bookingId", tickets.GetByBooking)
	g.GET("/:id/download", tickets.Download)
	g.POST("/:id/cancel", cancels.Cancel)
	g.POST("/:id/change", changes.Change)
}

// RegisterBoarding registers the boarding verification endpoint.  It is
// scoped to the same staff roles; the trip id in the path binds the
// scanner to one departure.
func RegisterBoarding(e *echo.Echo, verify *handler.VerifyHandler, jwtSecret string) {
	g := e.Group(
		"/v1/trips",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OPERATOR", "AGENT"),
	)
	g.POST("/:id/verify", verify.Verify)
}
