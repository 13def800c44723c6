package server

import (
	"errors"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/tenancy"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID reads the :id route parameter as a positive uint. On failure it
// writes a 400 naming resource and returns errResponseWritten, so callers
// return nil.
func parseID(c *fiber.Ctx, resource string) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+resource+" ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// visitorIDBody is the request body of the admin and guard actions that
// name a record in the body instead of the path.
type visitorIDBody struct {
	VisitorID uint `json:"visitor_id"`
}

// parseVisitorIDBody reads {visitor_id} from the body. Like parseID it
// writes the 400 itself and returns errResponseWritten.
func parseVisitorIDBody(c *fiber.Ctx) (uint, error) {
	var body visitorIDBody
	if err := c.BodyParser(&body); err != nil || body.VisitorID == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("visitor_id is required"))
		return 0, errResponseWritten
	}
	return body.VisitorID, nil
}

// actorFrom returns the actor AuthRequired resolved, or nil.
func actorFrom(c *fiber.Ctx) tenancy.Actor {
	a, _ := c.Locals("actor").(tenancy.Actor)
	return a
}

// respondError writes err with the status its code maps to. Internal errors
// are logged with the request context.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "error", err)
	}
	return models.RespondWithError(c, status, err)
}

// respondOK writes the success envelope merged with extra fields.
func respondOK(c *fiber.Ctx, status int, message string, extra fiber.Map) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}
