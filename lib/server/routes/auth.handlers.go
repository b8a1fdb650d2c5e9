package routes

import (
	"backend/lib/authentication"
	"backend/lib/server/middleware"
	"backend/lib/services"

	"github.com/gofiber/fiber/v2"
)

func RefreshAccessTokenHandler(c *fiber.Ctx, auth *authentication.AuthService, cache *services.Cache) error {
	csrf_token := c.Get("X-CSRF-Token")
	if csrf_token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": middleware.ErrInvalidCSRF.Error(),
		})
	}

	refresh_token := c.Get("X-Refresh-Token")
	if refresh_token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "No refresh token provided",
		})
	}

	access_token, expires_at, err := auth.RefreshUserAccessToken(c.Context(), refresh_token, csrf_token, cache)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid refresh token",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"access_token": access_token,
		"expires_at":   expires_at,
	})
}

func RefreshAllTokenHandler(c *fiber.Ctx, auth *authentication.AuthService, cache *services.Cache) error {
	refresh_token := c.Get("X-Refresh-Token")
	if refresh_token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "No refresh token provided",
		})
	}

	token_pair, err := auth.RefreshUserTokens(c.Context(), refresh_token, cache)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid refresh token",
		})
	}

	c.Set("X-CSRF-Token", token_pair.CSRFToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"access_token":  token_pair.AccessToken,
		"refresh_token": token_pair.RefreshToken,
		"expires_at":    token_pair.ExpiresAt,
	})
}

func LogoutHandler(c *fiber.Ctx, auth *authentication.AuthService, cache *services.Cache) error {
	username, err := middleware.GetUsername(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid user",
		})
	}

	if err := auth.RevokeUserTokens(c.Context(), username, cache); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid user",
		})
	}
	return c.SendStatus(fiber.StatusAccepted)
}
