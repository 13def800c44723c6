package server

import (
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Logout handles POST /api/auth/logout. The token's jti is blacklisted
// until the token would have expired anyway.
// @Summary Logout
// @Description Revokes the presented access token.
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Failure 503 {object} object{message=string}
// @Security BearerAuth
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("tokenJTI").(string)
	if jti == "" || s.redis == nil {
		return respondOK(c, fiber.StatusOK, "Logged out", nil)
	}

	ttl := time.Hour
	if exp, ok := c.Locals("tokenExpiresAt").(time.Time); ok && !exp.IsZero() {
		ttl = time.Until(exp)
	}
	if ttl <= 0 {
		return respondOK(c, fiber.StatusOK, "Logged out", nil)
	}

	if err := s.redis.Set(c.UserContext(), cache.BlacklistKey(jti), "1", ttl).Err(); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to blacklist token", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "Could not revoke token, please retry",
		})
	}
	return respondOK(c, fiber.StatusOK, "Logged out", nil)
}
