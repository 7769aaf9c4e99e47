package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteAuthLogin         = "/auth/login"
	RouteAuthLoginProvider = "/auth/login/{provider}"
	RouteAuthLogout        = "/auth/logout"
	RouteCallback          = "/auth/callback"

	// Password grant
	RouteToken = "/token"

	// Protected Routes
	RouteUsersMe  = "/users/me"
	RouteAPIUsers = "/api/users"
	RouteAPITools = "/api/tools"

	// Operational Routes
	RouteMetrics = "/metrics"

	// Frontend route that receives the session token in its URL fragment
	frontendCallbackPath = "/callback"
)
