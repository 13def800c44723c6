package server

import (
	"gatehouse/internal/models"
	"gatehouse/internal/service"
	"gatehouse/internal/tenancy"

	"github.com/gofiber/fiber/v2"
)

// SendNotificationRequest is the admin notify body.
type SendNotificationRequest struct {
	UserID    uint   `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	RelatedID *uint  `json:"related_id"`
}

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Description The caller's newest notifications and unread count.
// @Tags notifications
// @Produce json
// @Success 200 {object} object{notifications=[]models.NotificationRecord,unread_count=int}
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	list, unread, err := s.notificationService.Inbox(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{
		"notifications": list,
		"unread_count":  unread,
	})
}

// MarkNotificationRead handles POST /api/notifications/:id/read. Only the
// owner can mark an entry; anyone else gets a 404.
// @Summary Mark notification read
// @Description Marks one of the caller's notifications read.
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := parseID(c, "notification")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "Notification marked as read", nil)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
// @Summary Mark all notifications read
// @Description Marks every unread notification of the caller read.
// @Tags notifications
// @Produce json
// @Success 200 {object} object{updated=int}
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	updated, err := s.notificationService.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "All notifications marked as read", fiber.Map{"updated": updated})
}

// SendNotification handles POST /api/notifications (admins only).
// @Summary Send notification
// @Description Admin notifies a user of the same society; the user gets it live.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body object{user_id=int,title=string,message=string,type=string} true "Notification"
// @Success 201 {object} object{success=bool,notification=models.NotificationRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications [post]
func (s *Server) SendNotification(c *fiber.Ctx) error {
	admin, err := tenancy.AsAdmin(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	var req SendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	n, err := s.notificationService.Send(c.UserContext(), admin, service.SendNotificationInput{
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		RelatedID: req.RelatedID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, "Notification sent", fiber.Map{"notification": n})
}
