package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshAccessTokenHandlerRequiresTokens(t *testing.T) {
	app := fiber.New()
	app.Get("/refresh/access", func(c *fiber.Ctx) error {
		return RefreshAccessTokenHandler(c, nil, nil)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/refresh/access", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	request := httptest.NewRequest(fiber.MethodGet, "/refresh/access", nil)
	request.Header.Set("X-CSRF-Token", "csrf")
	resp, err = app.Test(request)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshAllTokenHandlerRequiresRefreshToken(t *testing.T) {
	app := fiber.New()
	app.Get("/refresh/refresh", func(c *fiber.Ctx) error {
		return RefreshAllTokenHandler(c, nil, nil)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/refresh/refresh", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutHandlerRequiresAuthenticatedUser(t *testing.T) {
	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		return LogoutHandler(c, nil, nil)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
