package server

import (
	m "backend/lib/maintenance"
	"backend/lib/server/middleware"
	"backend/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *BattleServer) RegisterBattleRoutes() {
	battle_group := server.App.Group("/battle")

	battle_group.Use(middleware.Protected(&server.AuthService))
	battle_group.Use(middleware.OnMSS(m.MODE_OPERATIONAL, m.STATE_RUNNING, m.SUBSTATE_SAFE))

	battle_group.Post("/challenge",
		func(c *fiber.Ctx) error {
			var data routes.BattleChallengeData

			if err := c.BodyParser(&data); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
			return routes.BattleChallengeHandler(data, c, &server.Cache, server.Users, server.Notifications)
		},
	)

	battle_group.Post("/challenge/response",
		func(c *fiber.Ctx) error {
			var data routes.BattleChallengeResponseData

			if err := c.BodyParser(&data); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
			return routes.BattleChallengeResponseHandler(data, c, &server.Cache, server.Supervisor.Orchestrator(), server.Notifications)
		},
	)

	// REST fallbacks for clients without a cache connection
	battle_group.Post("/:id/ready",
		func(c *fiber.Ctx) error {
			return routes.BattleReadyHandler(c, server.Supervisor.Orchestrator())
		},
	)

	battle_group.Post("/:id/submit",
		func(c *fiber.Ctx) error {
			var data routes.BattleSubmitData

			if err := c.BodyParser(&data); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
			return routes.BattleSubmitHandler(data, c, server.Supervisor.Orchestrator())
		},
	)

	battle_group.Get("/history",
		func(c *fiber.Ctx) error {
			return routes.BattleHistoryHandler(c, server.Store)
		},
	)
}
