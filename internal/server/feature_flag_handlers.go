package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns the configured flags evaluated for the admin's
// society, plus the lifecycle policy the engine runs there.
// @Summary Feature flags
// @Description Flags evaluated for the admin's society and the lifecycle policy in force.
// @Tags admin
// @Produce json
// @Success 200 {object} object{society=string,raw=object,evaluated=object,lifecycle_policy=string}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	var society string
	if a := actorFrom(c); a != nil {
		society = a.Scope().Tenant
	}

	return c.JSON(fiber.Map{
		"society":          society,
		"raw":              s.featureFlags.Raw(),
		"evaluated":        s.featureFlags.Snapshot(society),
		"lifecycle_policy": s.featureFlags.LifecyclePolicy(society),
	})
}
