package server

import "github.com/gofiber/fiber/v2"

// GetActivityLogs handles GET /api/activity-logs. ?context filters by
// action prefix, e.g. "visitor".
// @Summary List activity
// @Description Society activity feed, newest first.
// @Tags activity
// @Produce json
// @Param context query string false "Action prefix, e.g. visitor"
// @Param limit query int false "Page size"
// @Success 200 {object} object{logs=[]models.ActivityLog}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /activity-logs [get]
func (s *Server) GetActivityLogs(c *fiber.Ctx) error {
	logs, err := s.activityService.List(c.UserContext(), actorFrom(c), c.Query("context"), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{
		"logs":       logs,
		"activities": logs,
	})
}
