package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.APIMiddleware()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginRedirectHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLoginProvider, ChainMiddleware(s.LoginRedirectHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...)) // For form_post response mode
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.PasswordTokenHandler(), s.AuthMiddleware()...))

	// Protected routes (require a valid session token)
	s.RegisterRouteHandler("GET "+RouteUsersMe, ChainMiddleware(s.UsersMeHandler(), s.APIMiddleware(s.RequireSessionToken())...))
	s.RegisterRouteHandler("GET "+RouteAPIUsers, ChainMiddleware(s.UsersListHandler(), s.APIMiddleware(s.RequireSessionToken())...))
	s.RegisterRouteHandler("GET "+RouteAPITools, ChainMiddleware(s.ToolsListHandler(), s.APIMiddleware(s.RequireSessionToken())...))

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
