package server

import (
	"strconv"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/tenancy"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const defaultWSTicketTTL = 60 * time.Second

// IssueWSTicket handles POST /api/ws/ticket. The ticket is a single-use
// stand-in for the bearer token, since browsers cannot set headers on a
// websocket upgrade.
// @Summary Issue websocket ticket
// @Description Single-use ticket to authenticate the websocket upgrade.
// @Tags realtime
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "Realtime tickets are unavailable",
		})
	}

	ttl := defaultWSTicketTTL
	if s.config.WSTicketTTLSeconds > 0 {
		ttl = time.Duration(s.config.WSTicketTTLSeconds) * time.Second
	}

	ticket := uuid.NewString()
	key := cache.WSTicketKey(ticket)
	if err := s.redis.Set(c.UserContext(), key, strconv.FormatUint(uint64(userID), 10), ttl).Err(); err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return respondOK(c, fiber.StatusOK, "", fiber.Map{
		"ticket":     ticket,
		"expires_in": int(ttl.Seconds()),
	})
}

// WebsocketHandler upgrades GET /api/ws. The connection joins the caller's
// user room and society room and stays there until it closes.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		actor, ok := conn.Locals("actor").(tenancy.Actor)
		if !ok || s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		scope := actor.Scope()

		// Register connection with scaling guardrails
		client, err := s.hub.Register(scope.SubjectID, scope.Tenant, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed",
				"user_id", scope.SubjectID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		if frame := welcomeFrame(client); frame != nil {
			client.TrySend(frame)
		}
		client.Serve(handleClientFrame)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("Websocket upgrade required"))
		}
		return upgrade(c)
	}
}
