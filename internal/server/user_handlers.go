package server

import (
	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/me and returns the caller's resolved scope.
// @Summary Current principal
// @Description The caller's resolved role, society and flat.
// @Tags users
// @Produce json
// @Success 200 {object} object{success=bool,user=object}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	actor := actorFrom(c)
	if actor == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	scope := actor.Scope()

	return respondOK(c, fiber.StatusOK, "", fiber.Map{
		"user": fiber.Map{
			"id":           scope.SubjectID,
			"full_name":    scope.FullName,
			"user_type":    scope.Role,
			"society_name": scope.Tenant,
			"flat_number":  scope.FlatNumber,
		},
	})
}
