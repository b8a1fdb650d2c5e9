package middleware

import (
	"backend/lib/authentication"
	"backend/lib/services"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNoAuthHeader      = errors.New("no authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidCSRF       = errors.New("invalid or missing CSRF token")
)

// extractBearerToken gets the token from Authorization header
func extractBearerToken(c *fiber.Ctx) (string, error) {
	auth := c.Get("Authorization")
	if auth == "" {
		return "", ErrNoAuthHeader
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidAuthHeader
	}

	return parts[1], nil
}

// Protected is the main authentication middleware
func Protected(auth **authentication.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Extract and validate CSRF token first
		csrf_token := c.Get("X-CSRF-Token")
		if csrf_token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": ErrInvalidCSRF.Error(),
			})
		}
		access_token, err := extractBearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		claims, err := (*auth).ValidateUserToken(c.Context(), access_token, csrf_token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// RequireRefreshToken guards token refresh endpoints: the refresh token must
// resolve to a live cache entry before the handler runs.
func RequireRefreshToken(auth **authentication.AuthService, cache *services.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refresh_token := c.Get("X-Refresh-Token")
		if refresh_token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No refresh token provided",
			})
		}

		claims, err := (*auth).ValidateUserRefreshToken(c.Context(), refresh_token, cache)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid refresh token",
			})
		}

		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// GetUsername helper to get the authenticated username from context
func GetUsername(c *fiber.Ctx) (string, error) {
	username, ok := c.Locals("username").(string)
	if !ok || username == "" {
		return "", errors.New("username not found in context")
	}
	return username, nil
}
