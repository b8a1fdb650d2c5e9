package server

import (
	m "backend/lib/maintenance"
	"backend/lib/server/middleware"
	"backend/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *BattleServer) RegisterAuthRoutes() {
	auth_group := server.App.Group("/auth")
	auth_group.Use(
		middleware.OnMSS(m.MODE_OPERATIONAL, m.STATE_RUNNING, m.SUBSTATE_SAFE),
	)

	auth_group.Get("/refresh/access",
		middleware.RequireRefreshToken(&server.AuthService, &server.Cache),
		func(c *fiber.Ctx) error {
			return routes.RefreshAccessTokenHandler(c, server.AuthService, &server.Cache)
		},
	)
	auth_group.Get("/refresh/refresh",
		middleware.RequireRefreshToken(&server.AuthService, &server.Cache),
		func(c *fiber.Ctx) error {
			return routes.RefreshAllTokenHandler(c, server.AuthService, &server.Cache)
		},
	)

	auth_group.Post("/logout",
		middleware.Protected(&server.AuthService),
		func(c *fiber.Ctx) error {
			return routes.LogoutHandler(c, server.AuthService, &server.Cache)
		},
	)
}
