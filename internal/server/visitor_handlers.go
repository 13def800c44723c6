package server

import (
	"fmt"
	"strings"
	"time"

	"gatehouse/internal/credential"
	"gatehouse/internal/export"
	"gatehouse/internal/models"
	"gatehouse/internal/service"
	"gatehouse/internal/tenancy"

	"github.com/gofiber/fiber/v2"
)

// VisitorRequest is the body of the arrival and pre-approval endpoints.
type VisitorRequest struct {
	VisitorName          string `json:"visitor_name"`
	VisitorPhone         string `json:"visitor_phone"`
	FlatNumber           string `json:"flat_number"`
	Purpose              string `json:"purpose"`
	IDType               string `json:"visitor_id_type"`
	IDNumber             string `json:"visitor_id_number"`
	ServiceProviderName  string `json:"service_provider_name"`
	IsPreApprovedService bool   `json:"is_pre_approved_service"`
	IsServiceProvider    bool   `json:"is_service_provider"`
	ExpectedDate         string `json:"expected_date"`
	ExpectedTime         string `json:"expected_time"`
}

func (r VisitorRequest) input() service.VisitorInput {
	return service.VisitorInput{
		VisitorName:          r.VisitorName,
		VisitorPhone:         r.VisitorPhone,
		FlatNumber:           r.FlatNumber,
		Purpose:              r.Purpose,
		IDType:               r.IDType,
		IDNumber:             r.IDNumber,
		ServiceProviderName:  r.ServiceProviderName,
		IsPreApprovedService: r.IsPreApprovedService || r.IsServiceProvider,
	}
}

func (r VisitorRequest) preApproval() (service.PreApprovalInput, error) {
	in := service.PreApprovalInput{VisitorInput: r.input(), ExpectedTime: r.ExpectedTime}
	if d := strings.TrimSpace(r.ExpectedDate); d != "" {
		day, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return in, models.NewValidationError("expected_date must be YYYY-MM-DD")
		}
		in.ExpectedDate = &day
	}
	return in, nil
}

type permissionRequest struct {
	Action string `json:"action"`
}

type verifyQRRequest struct {
	QRData string `json:"qr_data"`
}

// visitorSummary is the short form embedded in credential responses.
func visitorSummary(rec *models.VisitorRecord) fiber.Map {
	return fiber.Map{
		"id":           rec.ID,
		"visitor_name": rec.VisitorName,
		"flat_number":  rec.FlatNumber,
	}
}

// LogArrival handles POST /api/visitor-log
// @Summary Log visitor arrival
// @Description Guard records a visitor at the gate and prompts the flat's resident.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body VisitorRequest true "Visitor details"
// @Success 201 {object} object{visitor_id=int,visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log [post]
func (s *Server) LogArrival(c *fiber.Ctx) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	var req VisitorRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	rec, err := s.visitorService.LogArrival(c.UserContext(), g, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, "Visitor entry created", fiber.Map{
		"visitor_id": rec.ID,
		"visitor":    rec,
	})
}

// ListVisitors handles GET /api/visitor-log
// @Summary List visitors
// @Description List the visits the caller may see, optionally filtered by state.
// @Tags visitors
// @Produce json
// @Param status query string false "Lifecycle state"
// @Param permission_status query string false "Permission state"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{visitors=[]models.VisitorRecord}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log [get]
func (s *Server) ListVisitors(c *fiber.Ctx) error {
	v, err := tenancy.AsViewer(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	page := parsePagination(c, 50)

	visitors, err := s.visitorService.List(c.UserContext(), v, service.ListFilter{
		Lifecycle:  models.LifecycleState(c.Query("status")),
		Permission: models.PermissionState(c.Query("permission_status")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{"visitors": visitors})
}

// AskPermission handles POST /api/visitor-log/:id/ask-permission
// @Summary Ask resident for permission
// @Description Guard re-sends the permission prompt for a logged visitor.
// @Tags visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/{id}/ask-permission [post]
func (s *Server) AskPermission(c *fiber.Ctx) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseID(c, "visitor")
	if err != nil {
		return nil
	}

	rec, err := s.visitorService.RequestPermission(c.UserContext(), g, id)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "Permission request sent to resident", fiber.Map{"visitor": rec})
}

// RespondPermission handles POST /api/visitor-log/:id/permission
// @Summary Allow or deny a visitor
// @Description Resident of the target flat answers a permission prompt.
// @Tags visitors
// @Accept json
// @Produce json
// @Param id path int true "Visitor ID"
// @Param request body object{action=string} true "allow or deny"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/{id}/permission [post]
func (s *Server) RespondPermission(c *fiber.Ctx) error {
	r, err := tenancy.AsResident(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseID(c, "visitor")
	if err != nil {
		return nil
	}
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	rec, err := s.visitorService.RespondPermission(c.UserContext(), r, id, req.Action)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, fmt.Sprintf("Visitor %s", rec.PermissionStatus), fiber.Map{"visitor": rec})
}

// MarkVisitorExit handles POST /api/visitor-log/:id/exit
// @Summary Mark visitor exit
// @Description Guard checks a visitor out by path ID.
// @Tags visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/{id}/exit [post]
func (s *Server) MarkVisitorExit(c *fiber.Ctx) error {
	id, err := parseID(c, "visitor")
	if err != nil {
		return nil
	}
	return s.markExit(c, id)
}

// PreApproveVisitor handles POST /api/visitor-log/pre-approve (residents).
// @Summary Pre-approve a visitor
// @Description Resident pre-clears a guest for their own flat.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body VisitorRequest true "Visitor details"
// @Success 201 {object} object{visitor_id=int,visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/pre-approve [post]
func (s *Server) PreApproveVisitor(c *fiber.Ctx) error {
	r, err := tenancy.AsResident(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return s.preApprove(c, r)
}

// AdminPreApproveVisitor handles POST /api/visitors/pre-approve-admin
// @Summary Pre-approve a visitor for any flat
// @Description Admin pre-clears a guest for any flat in the society.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body VisitorRequest true "Visitor details"
// @Success 201 {object} object{visitor_id=int,visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/pre-approve-admin [post]
func (s *Server) AdminPreApproveVisitor(c *fiber.Ctx) error {
	a, err := tenancy.AsAdmin(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return s.preApprove(c, a)
}

func (s *Server) preApprove(c *fiber.Ctx, p tenancy.PreApprover) error {
	var req VisitorRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	in, err := req.preApproval()
	if err != nil {
		return respondError(c, err)
	}

	rec, err := s.visitorService.PreApprove(c.UserContext(), p, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, "Visitor pre-approved successfully", fiber.Map{
		"visitor_id": rec.ID,
		"visitor":    rec,
	})
}

// GetQRCode handles GET /api/visitor-log/:id/qr-code and streams the PNG.
// @Summary Download visitor QR code
// @Description PNG credential for a visit, sent as an attachment.
// @Tags visitors
// @Produce octet-stream
// @Param id path int true "Visitor ID"
// @Success 200 {file} binary
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/{id}/qr-code [get]
func (s *Server) GetQRCode(c *fiber.Ctx) error {
	rec, payload, err := s.credentialFor(c)
	if err != nil {
		if err == errResponseWritten {
			return nil
		}
		return respondError(c, err)
	}
	png, err := s.codec.PNG(payload)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="visitor_qr_%d.png"`, rec.ID))
	return c.Send(png)
}

// GetQRCodeBase64 handles GET /api/visitor-log/:id/qr-code-base64
// @Summary Get visitor QR code as data URL
// @Description Base64 PNG credential plus a short visitor summary.
// @Tags visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} object{qr_code=string,visitor=object}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/{id}/qr-code-base64 [get]
func (s *Server) GetQRCodeBase64(c *fiber.Ctx) error {
	rec, payload, err := s.credentialFor(c)
	if err != nil {
		if err == errResponseWritten {
			return nil
		}
		return respondError(c, err)
	}
	dataURL, err := s.codec.DataURL(payload)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{
		"qr_code": dataURL,
		"visitor": visitorSummary(rec),
	})
}

func (s *Server) credentialFor(c *fiber.Ctx) (*models.VisitorRecord, credential.Payload, error) {
	v, err := tenancy.AsViewer(actorFrom(c))
	if err != nil {
		return nil, credential.Payload{}, err
	}
	id, err := parseID(c, "visitor")
	if err != nil {
		return nil, credential.Payload{}, err
	}
	return s.visitorService.Credential(c.UserContext(), v, id)
}

// VerifyQRCode handles POST /api/visitor-log/verify-qr
// @Summary Verify QR code
// @Description Guard scans a credential; the visit is re-read from the store and checked in.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body object{qr_data=string} true "Scanned QR payload"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-log/verify-qr [post]
func (s *Server) VerifyQRCode(c *fiber.Ctx) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	var req verifyQRRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewMalformedCredentialError(err))
	}

	rec, err := s.visitorService.VerifyCredential(c.UserContext(), g, req.QRData)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "Visitor verified successfully", fiber.Map{"visitor": rec})
}

// GetPendingVisitors handles GET /api/visitors/pending
// @Summary List pending visitors
// @Description Visits in the society still awaiting a permission decision.
// @Tags visitors
// @Produce json
// @Success 200 {object} object{visitors=[]models.VisitorRecord}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/pending [get]
func (s *Server) GetPendingVisitors(c *fiber.Ctx) error {
	visitors, err := s.visitorService.Pending(c.UserContext(), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{"visitors": visitors})
}

// ApproveVisitor handles POST /api/visitors/approve
// @Summary Approve a visitor
// @Description Admin review: approve any visit that has not exited.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body object{visitor_id=int} true "Visitor"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/approve [post]
func (s *Server) ApproveVisitor(c *fiber.Ctx) error {
	return s.review(c, "approve")
}

// RejectVisitor handles POST /api/visitors/reject
// @Summary Reject a visitor
// @Description Admin review: reject any visit that has not exited.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body object{visitor_id=int} true "Visitor"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/reject [post]
func (s *Server) RejectVisitor(c *fiber.Ctx) error {
	return s.review(c, "reject")
}

func (s *Server) review(c *fiber.Ctx, action string) error {
	a, err := tenancy.AsAdmin(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseVisitorIDBody(c)
	if err != nil {
		return nil
	}

	rec, err := s.visitorService.Review(c.UserContext(), a, id, action)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, fmt.Sprintf("Visitor %s", rec.PermissionStatus), fiber.Map{"visitor": rec})
}

// MarkEntry handles POST /api/visitors/mark-entry
// @Summary Mark visitor entry
// @Description Guard checks a visitor in and opens the barrier.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body object{visitor_id=int} true "Visitor"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/mark-entry [post]
func (s *Server) MarkEntry(c *fiber.Ctx) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseVisitorIDBody(c)
	if err != nil {
		return nil
	}

	rec, err := s.visitorService.MarkEntry(c.UserContext(), g, id)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "Visitor entry logged", fiber.Map{"visitor": rec})
}

// MarkExit handles POST /api/visitors/mark-exit
// @Summary Mark visitor exit
// @Description Guard checks a visitor out and closes the barrier.
// @Tags visitors
// @Accept json
// @Produce json
// @Param request body object{visitor_id=int} true "Visitor"
// @Success 200 {object} object{visitor=models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/mark-exit [post]
func (s *Server) MarkExit(c *fiber.Ctx) error {
	id, err := parseVisitorIDBody(c)
	if err != nil {
		return nil
	}
	return s.markExit(c, id)
}

func (s *Server) markExit(c *fiber.Ctx, id uint) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	rec, err := s.visitorService.MarkExit(c.UserContext(), g, id)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "Visitor exit logged", fiber.Map{"visitor": rec})
}

// GetExpectedVisitors handles GET /api/visitors/expected. The day defaults
// to today in UTC and can be overridden with ?date=YYYY-MM-DD.
// @Summary List expected visitors
// @Description Cleared visits due on the given day that have not arrived.
// @Tags visitors
// @Produce json
// @Param date query string false "Day as YYYY-MM-DD (defaults to today, UTC)"
// @Success 200 {object} object{expected_visitors=[]models.VisitorRecord}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/expected [get]
func (s *Server) GetExpectedVisitors(c *fiber.Ctx) error {
	g, err := tenancy.AsGuard(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		day, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			return respondError(c, models.NewValidationError("date must be YYYY-MM-DD"))
		}
	}

	visitors, err := s.visitorService.Expected(c.UserContext(), g, day)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{"expected_visitors": visitors})
}

// GetVisitorsInside handles GET /api/visitors/inside
// @Summary List visitors inside
// @Description Visits currently checked in.
// @Tags visitors
// @Produce json
// @Success 200 {object} object{visitors=[]models.VisitorRecord}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/inside [get]
func (s *Server) GetVisitorsInside(c *fiber.Ctx) error {
	visitors, err := s.visitorService.Inside(c.UserContext(), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{"visitors": visitors})
}

// GetVisitorHistory handles GET /api/visitor-logs/history
// @Summary Visitor history
// @Description Newest visits first within the caller's scope.
// @Tags visitors
// @Produce json
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {object} object{visitors=[]models.VisitorRecord}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitor-logs/history [get]
func (s *Server) GetVisitorHistory(c *fiber.Ctx) error {
	v, err := tenancy.AsViewer(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	visitors, err := s.visitorService.History(c.UserContext(), v, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, "", fiber.Map{"visitors": visitors})
}

// ExportVisitorHistory handles GET /api/visitors/history/export and returns
// the society's history as an XLSX workbook.
// @Summary Export visitor history
// @Description Society history as an XLSX workbook.
// @Tags visitors
// @Produce octet-stream
// @Param limit query int false "Maximum rows"
// @Param tz query string false "IANA time zone for timestamps"
// @Success 200 {file} binary
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /visitors/history/export [get]
func (s *Server) ExportVisitorHistory(c *fiber.Ctx) error {
	a, err := tenancy.AsAdmin(actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	visitors, err := s.visitorService.History(c.UserContext(), a, c.QueryInt("limit", 200))
	if err != nil {
		return respondError(c, err)
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	body, err := export.HistoryXLSX(visitors, loc)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="visitor_history_%s.xlsx"`,
		time.Now().In(loc).Format("20060102")))
	return c.Send(body)
}
