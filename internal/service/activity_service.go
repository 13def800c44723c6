package service

import (
	"context"
	"log/slog"

	"gatehouse/internal/models"
	"gatehouse/internal/observability"
	"gatehouse/internal/repository"
	"gatehouse/internal/tenancy"
)

// Audit actions written by the visitor engine.
const (
	ActionPermissionRequest  = "Permission Request"
	ActionVisitorPermission  = "Visitor Permission"
	ActionVisitorReview      = "Visitor Review"
	ActionResidentPreApprove = "Pre-Approved Visitor"
	ActionAdminPreApprove    = "Visitor Pre-Approved"
	ActionQRVerified         = "QR Verified"
	ActionVisitorEntry       = "Visitor Entry"
	ActionVisitorExit        = "Visitor Exit"
)

const defaultActivityLimit = 20

// ActivityService writes and reads the society audit trail.
type ActivityService struct {
	repo repository.ActivityRepository
}

func NewActivityService(repo repository.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Record appends an entry for the acting principal. Failures are logged
// only; the audited action already committed.
func (s *ActivityService) Record(ctx context.Context, who tenancy.Scope, action, description string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.ActivityLog{
		Action:      action,
		Description: description,
		UserID:      who.SubjectID,
		UserName:    who.FullName,
		UserType:    who.Role,
		SocietyName: who.Tenant,
		Device:      DescribeDevice(userAgentFrom(ctx)),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to record activity",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

// List returns the society feed for guards and admins, newest first.
// prefix filters actions case-insensitively, e.g. "visitor".
func (s *ActivityService) List(ctx context.Context, a tenancy.Actor, prefix string, limit int) ([]models.ActivityLog, error) {
	scope, err := tenancy.GuardOrAdmin(a)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	return s.repo.ListBySociety(ctx, scope.Tenant, prefix, limit)
}
