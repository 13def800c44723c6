package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatehouse/internal/credential"
	"gatehouse/internal/featureflags"
	"gatehouse/internal/gate"
	"gatehouse/internal/lifecycle"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/observability"
	"gatehouse/internal/repository"
	"gatehouse/internal/tenancy"
	"gatehouse/internal/validation"
)

const (
	defaultHistoryLimit = 50
	gatePublishTimeout  = 3 * time.Second
)

// VisitorService runs the visitor lifecycle: every mutation resolves
// scope, loads the record, applies the state machine and saves. Only after
// the save succeeds are notifications, broadcasts, audit entries and gate
// commands issued, and none of those can fail the call.
type VisitorService struct {
	visitors     repository.VisitorRepository
	users        repository.UserRepository
	router       *Router
	activity     *ActivityService
	gate         gate.Publisher
	flags        *featureflags.Manager
	now          func() time.Time
	historyLimit int
}

// VisitorServiceDeps are the collaborators of a VisitorService. Gate,
// Flags, Activity and Now are optional.
type VisitorServiceDeps struct {
	Visitors     repository.VisitorRepository
	Users        repository.UserRepository
	Router       *Router
	Activity     *ActivityService
	Gate         gate.Publisher
	Flags        *featureflags.Manager
	Now          func() time.Time
	HistoryLimit int
}

func NewVisitorService(d VisitorServiceDeps) *VisitorService {
	s := &VisitorService{
		visitors:     d.Visitors,
		users:        d.Users,
		router:       d.Router,
		activity:     d.Activity,
		gate:         d.Gate,
		flags:        d.Flags,
		now:          d.Now,
		historyLimit: d.HistoryLimit,
	}
	if s.gate == nil {
		s.gate = gate.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}
	return s
}

// VisitorInput is the visitor identity a guard or pre-approver submits.
type VisitorInput struct {
	VisitorName          string
	VisitorPhone         string
	FlatNumber           string
	Purpose              string
	IDType               string
	IDNumber             string
	ServiceProviderName  string
	IsPreApprovedService bool
}

// PreApprovalInput adds the expected arrival to a VisitorInput.
type PreApprovalInput struct {
	VisitorInput
	ExpectedDate *time.Time
	ExpectedTime string
}

// ListFilter is the caller-facing subset of repository.VisitorFilter.
type ListFilter struct {
	Lifecycle  models.LifecycleState
	Permission models.PermissionState
	Limit      int
	Offset     int
}

func (in *VisitorInput) normalize() {
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.VisitorPhone = strings.TrimSpace(in.VisitorPhone)
	in.FlatNumber = strings.TrimSpace(in.FlatNumber)
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.IDType = strings.ToLower(strings.TrimSpace(in.IDType))
	in.IDNumber = strings.TrimSpace(in.IDNumber)
	in.ServiceProviderName = strings.TrimSpace(in.ServiceProviderName)
}

func (in VisitorInput) validate() error {
	checks := []error{
		validation.ValidateVisitorName(in.VisitorName),
		validation.ValidatePhone(in.VisitorPhone),
		validation.ValidateFlatNumber(in.FlatNumber),
		validation.ValidatePurpose(in.Purpose),
		validation.ValidateIDDocument(in.IDType, in.IDNumber),
	}
	for _, err := range checks {
		if err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

func (in VisitorInput) record(society string) *models.VisitorRecord {
	return &models.VisitorRecord{
		SocietyName:          society,
		FlatNumber:           in.FlatNumber,
		VisitorName:          in.VisitorName,
		VisitorPhone:         in.VisitorPhone,
		IDType:               in.IDType,
		IDNumber:             in.IDNumber,
		Purpose:              in.Purpose,
		ServiceProviderName:  in.ServiceProviderName,
		IsPreApprovedService: in.IsPreApprovedService,
	}
}

func (s *VisitorService) machine(society string) lifecycle.Machine {
	return lifecycle.New(s.flags.LifecyclePolicy(society) == featureflags.PolicyStrict)
}

// LogArrival records a visitor at the gate. When the target flat has a
// resident, that resident gets an inbox entry and a live prompt.
func (s *VisitorService) LogArrival(ctx context.Context, g tenancy.Guard, in VisitorInput) (*models.VisitorRecord, error) {
	scope := g.Scope()
	span, ctx := observability.StartOperation(ctx, "visitor.log_arrival", scope.Tenant)
	defer span.End()

	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	state, err := s.machine(scope.Tenant).Start(lifecycle.Log)
	if err != nil {
		return nil, err
	}

	resident, err := s.users.FindResident(ctx, scope.Tenant, in.FlatNumber)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	rec := in.record(scope.Tenant)
	rec.Status, rec.PermissionStatus = state.Lifecycle, state.Permission
	guardID := scope.SubjectID
	rec.GuardID = &guardID
	rec.GuardName = scope.FullName
	if resident != nil {
		residentID := resident.ID
		rec.ResidentID = &residentID
	}

	if err := s.visitors.Create(ctx, rec); err != nil {
		observability.VisitorTransitions.WithLabelValues(string(lifecycle.Log), "error").Inc()
		span.SetError(err)
		return nil, err
	}
	s.committed(ctx, rec, lifecycle.Log)

	if resident != nil {
		s.promptResident(ctx, rec, resident.ID)
	}
	s.activity.Record(ctx, scope, ActionPermissionRequest,
		fmt.Sprintf("Visitor %s logged for flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

func (s *VisitorService) promptResident(ctx context.Context, rec *models.VisitorRecord, residentID uint) {
	purpose := rec.Purpose
	if purpose == "" {
		purpose = "Guest"
	}
	relatedID := rec.ID
	note := &models.NotificationRecord{
		UserID: residentID,
		Title:  "Visitor Permission Request",
		Message: fmt.Sprintf("Visitor %s (%s) is at the gate requesting entry to Flat %s. Guard: %s",
			rec.VisitorName, purpose, rec.FlatNumber, rec.GuardName),
		Type:      models.NotificationVisitorPermission,
		RelatedID: &relatedID,
	}
	if err := s.router.Persist(ctx, note); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to persist visitor notification",
			slog.Uint64("visitor_id", uint64(rec.ID)),
			slog.String("error", err.Error()),
		)
	}
	s.router.Broadcast(ctx, notifications.UserRoom(residentID), EventNewVisitorPending, map[string]interface{}{
		"visitor_id":    rec.ID,
		"visitor_name":  rec.VisitorName,
		"visitor_phone": rec.VisitorPhone,
		"purpose":       rec.Purpose,
		"flat_number":   rec.FlatNumber,
		"guard_name":    rec.GuardName,
	})
}

// RequestPermission flags a logged visit as awaiting the resident.
func (s *VisitorService) RequestPermission(ctx context.Context, g tenancy.Guard, id uint) (*models.VisitorRecord, error) {
	rec, err := s.load(ctx, g, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, rec, lifecycle.RequestPermission); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, g.Scope(), ActionPermissionRequest,
		fmt.Sprintf("Permission requested for %s at flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

// RespondPermission applies a resident's allow or deny. The resident must
// live at the visit's flat, and the visit must be unclaimed or theirs.
func (s *VisitorService) RespondPermission(ctx context.Context, r tenancy.Resident, id uint, action string) (*models.VisitorRecord, error) {
	var ev lifecycle.Event
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "allow":
		ev = lifecycle.Allow
	case "deny":
		ev = lifecycle.Deny
	default:
		return nil, models.NewValidationError("action must be allow or deny")
	}

	rec, err := s.load(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !r.CanTouch(rec) {
		return nil, models.NewUnauthorizedError("Visitor is not for your flat")
	}
	residentID := r.Scope().SubjectID
	if err := s.applyWith(ctx, rec, ev, func(v *models.VisitorRecord) {
		if v.ResidentID == nil {
			v.ResidentID = &residentID
		}
	}); err != nil {
		return nil, err
	}

	s.router.Broadcast(ctx, notifications.SocietyRoom(rec.SocietyName), EventVisitorPermissionUpdate, map[string]interface{}{
		"visitor_id":        rec.ID,
		"visitor_name":      rec.VisitorName,
		"permission_status": rec.PermissionStatus,
		"flat_number":       rec.FlatNumber,
		"action":            string(ev),
	})
	s.activity.Record(ctx, r.Scope(), ActionVisitorPermission,
		fmt.Sprintf("%s %s entry to flat %s", rec.VisitorName, rec.PermissionStatus, rec.FlatNumber))
	return rec, nil
}

// Review is the admin approve/reject path. It is legal on any visit that
// has not exited, which lets admins settle inside-but-denied alerts.
func (s *VisitorService) Review(ctx context.Context, a tenancy.Admin, id uint, action string) (*models.VisitorRecord, error) {
	var ev lifecycle.Event
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		ev = lifecycle.Approve
	case "reject":
		ev = lifecycle.Reject
	default:
		return nil, models.NewValidationError("action must be approve or reject")
	}

	rec, err := s.load(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, rec, ev); err != nil {
		return nil, err
	}

	s.router.Broadcast(ctx, notifications.SocietyRoom(rec.SocietyName), EventVisitorPermissionUpdate, map[string]interface{}{
		"visitor_id":        rec.ID,
		"visitor_name":      rec.VisitorName,
		"permission_status": rec.PermissionStatus,
		"flat_number":       rec.FlatNumber,
		"action":            string(ev),
	})
	s.activity.Record(ctx, a.Scope(), ActionVisitorReview,
		fmt.Sprintf("%s %s by admin", rec.VisitorName, rec.PermissionStatus))
	return rec, nil
}

// PreApprove creates a visit that is cleared before arrival. Residents can
// only pre-approve for their own flat; admins name any flat in the society.
func (s *VisitorService) PreApprove(ctx context.Context, p tenancy.PreApprover, in PreApprovalInput) (*models.VisitorRecord, error) {
	scope := p.Scope()
	span, ctx := observability.StartOperation(ctx, "visitor.pre_approve", scope.Tenant)
	defer span.End()

	ev := lifecycle.AdminPreApprove
	resident, isResident := p.(tenancy.Resident)
	if isResident {
		ev = lifecycle.ResidentPreApprove
		own := resident.VisitorScope().FlatNumber
		if in.FlatNumber != "" && !strings.EqualFold(strings.TrimSpace(in.FlatNumber), own) {
			return nil, models.NewUnauthorizedError("Residents can only pre-approve visitors for their own flat")
		}
		in.FlatNumber = own
	}

	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := validation.ValidateExpectedTime(in.ExpectedTime); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	state, err := s.machine(scope.Tenant).Start(ev)
	if err != nil {
		return nil, err
	}
	if state.Permission != p.PreApprovalPermission() {
		return nil, models.NewInvalidTransitionError("none", string(ev))
	}

	rec := in.record(scope.Tenant)
	rec.Status, rec.PermissionStatus = state.Lifecycle, state.Permission
	rec.IsPreApproved = true
	rec.ExpectedTime = strings.TrimSpace(in.ExpectedTime)
	if in.ExpectedDate != nil {
		d := in.ExpectedDate.UTC().Truncate(24 * time.Hour)
		rec.ExpectedDate = &d
	}
	if isResident {
		residentID := scope.SubjectID
		rec.ResidentID = &residentID
	}

	if err := s.visitors.Create(ctx, rec); err != nil {
		observability.VisitorTransitions.WithLabelValues(string(ev), "error").Inc()
		span.SetError(err)
		return nil, err
	}
	s.committed(ctx, rec, ev)

	action := ActionAdminPreApprove
	if isResident {
		action = ActionResidentPreApprove
	}
	s.activity.Record(ctx, scope, action,
		fmt.Sprintf("%s pre-approved for flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

// Credential returns the record and its QR payload for a caller entitled
// to view it.
func (s *VisitorService) Credential(ctx context.Context, v tenancy.Viewer, id uint) (*models.VisitorRecord, credential.Payload, error) {
	rec, err := s.load(ctx, v, id)
	if err != nil {
		return nil, credential.Payload{}, err
	}
	if r, ok := v.(tenancy.Resident); ok && !r.CanTouch(rec) {
		return nil, credential.Payload{}, models.NewUnauthorizedError("Visitor is not for your flat")
	}
	return rec, credential.FromRecord(rec), nil
}

// VerifyCredential checks a scanned QR payload in. The payload only locates
// the record; everything returned comes from the store.
func (s *VisitorService) VerifyCredential(ctx context.Context, g tenancy.Guard, raw string) (*models.VisitorRecord, error) {
	span, ctx := observability.StartOperation(ctx, "visitor.verify_credential", g.Scope().Tenant)
	defer span.End()

	p, err := credential.Decode(raw)
	if err != nil {
		observability.VisitorTransitions.WithLabelValues(string(lifecycle.CheckIn), "rejected").Inc()
		return nil, err
	}
	rec, err := s.load(ctx, g, uint(p.VisitorID))
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if rec.Status == models.LifecycleExited {
		observability.VisitorTransitions.WithLabelValues(string(lifecycle.CheckIn), "rejected").Inc()
		return nil, models.NewAlreadyExitedError()
	}
	if err := s.checkIn(ctx, g, rec); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, g.Scope(), ActionQRVerified,
		fmt.Sprintf("QR verified for %s, flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

// MarkEntry checks a visitor in without a QR scan.
func (s *VisitorService) MarkEntry(ctx context.Context, g tenancy.Guard, id uint) (*models.VisitorRecord, error) {
	rec, err := s.load(ctx, g, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkIn(ctx, g, rec); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, g.Scope(), ActionVisitorEntry,
		fmt.Sprintf("%s entered for flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

func (s *VisitorService) checkIn(ctx context.Context, g tenancy.Guard, rec *models.VisitorRecord) error {
	scope := g.Scope()
	now := s.now().UTC()
	guardID := scope.SubjectID
	if err := s.applyWith(ctx, rec, lifecycle.CheckIn, func(r *models.VisitorRecord) {
		r.EntryTime = &now
		r.GuardCheckInTime = &now
		r.GuardID = &guardID
		r.GuardName = scope.FullName
	}); err != nil {
		return err
	}
	s.visitorUpdate(ctx, rec)
	s.sendGate(ctx, gate.CommandOpen, rec)
	return nil
}

// MarkExit checks a visitor out.
func (s *VisitorService) MarkExit(ctx context.Context, g tenancy.Guard, id uint) (*models.VisitorRecord, error) {
	rec, err := s.load(ctx, g, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.applyWith(ctx, rec, lifecycle.CheckOut, func(r *models.VisitorRecord) {
		r.ExitTime = &now
		r.GuardCheckOutTime = &now
	}); err != nil {
		return nil, err
	}
	s.visitorUpdate(ctx, rec)
	s.sendGate(ctx, gate.CommandClose, rec)
	s.activity.Record(ctx, g.Scope(), ActionVisitorExit,
		fmt.Sprintf("%s exited from flat %s", rec.VisitorName, rec.FlatNumber))
	return rec, nil
}

// List returns the visits the viewer may see.
func (s *VisitorService) List(ctx context.Context, v tenancy.Viewer, f ListFilter) ([]models.VisitorRecord, error) {
	return s.visitors.List(ctx, v.VisitorScope(), repository.VisitorFilter{
		Lifecycle:  f.Lifecycle,
		Permission: f.Permission,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
}

// Pending lists visits awaiting a decision, for guards and admins.
func (s *VisitorService) Pending(ctx context.Context, a tenancy.Actor) ([]models.VisitorRecord, error) {
	scope, err := tenancy.GuardOrAdmin(a)
	if err != nil {
		return nil, err
	}
	return s.visitors.List(ctx, scope, repository.VisitorFilter{Permission: models.PermissionPending})
}

// Expected lists cleared visitors who have not arrived yet, due on day or
// with no date set.
func (s *VisitorService) Expected(ctx context.Context, g tenancy.Guard, day time.Time) ([]models.VisitorRecord, error) {
	return s.visitors.List(ctx, g.VisitorScope(), repository.VisitorFilter{
		PermissionIn: []models.PermissionState{
			models.PermissionPreApproved,
			models.PermissionApproved,
			models.PermissionAllowed,
		},
		LifecycleNotIn: []models.LifecycleState{models.LifecycleInside, models.LifecycleExited},
		ExpectedOn:     &day,
	})
}

// Inside lists visitors currently on the premises.
func (s *VisitorService) Inside(ctx context.Context, a tenancy.Actor) ([]models.VisitorRecord, error) {
	scope, err := tenancy.GuardOrAdmin(a)
	if err != nil {
		return nil, err
	}
	return s.visitors.List(ctx, scope, repository.VisitorFilter{Lifecycle: models.LifecycleInside})
}

// History returns the viewer's visits, newest first.
func (s *VisitorService) History(ctx context.Context, v tenancy.Viewer, limit int) ([]models.VisitorRecord, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.visitors.List(ctx, v.VisitorScope(), repository.VisitorFilter{Limit: limit})
}

// load reads a record and enforces the tenant boundary.
func (s *VisitorService) load(ctx context.Context, a tenancy.Actor, id uint) (*models.VisitorRecord, error) {
	if id == 0 {
		return nil, models.NewValidationError("visitor_id is required")
	}
	rec, err := s.visitors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tenancy.SameTenant(a, rec) {
		return nil, models.NewTenantMismatchError("Visitor belongs to another society")
	}
	return rec, nil
}

func (s *VisitorService) apply(ctx context.Context, rec *models.VisitorRecord, ev lifecycle.Event) error {
	return s.applyWith(ctx, rec, ev, nil)
}

// applyWith runs ev through the machine, lets mutate set the fields the
// transition owns, and writes only the columns that changed. Concurrent
// writes to other columns are kept: on return rec holds the stored row, so
// a check-in racing a deny ends as {inside, denied} and raises the alert.
// rec is left untouched when the machine refuses or the write fails.
func (s *VisitorService) applyWith(ctx context.Context, rec *models.VisitorRecord, ev lifecycle.Event, mutate func(*models.VisitorRecord)) error {
	next, err := s.machine(rec.SocietyName).Apply(lifecycle.Of(rec), ev)
	if err != nil {
		observability.VisitorTransitions.WithLabelValues(string(ev), "rejected").Inc()
		return err
	}

	updated := *rec
	updated.Status, updated.PermissionStatus = next.Lifecycle, next.Permission
	if mutate != nil {
		mutate(&updated)
	}
	stored, err := s.visitors.Update(ctx, &updated, models.ChangedColumns(rec, &updated))
	if err != nil {
		observability.VisitorTransitions.WithLabelValues(string(ev), "error").Inc()
		return err
	}
	*rec = *stored
	s.committed(ctx, rec, ev)
	return nil
}

func (s *VisitorService) committed(ctx context.Context, rec *models.VisitorRecord, ev lifecycle.Event) {
	observability.VisitorTransitions.WithLabelValues(string(ev), "ok").Inc()
	state := lifecycle.Of(rec)
	observability.TagVisitor(ctx, rec.ID, state.String())
	observability.GlobalLogger.InfoContext(ctx, "visitor transition",
		slog.Uint64("visitor_id", uint64(rec.ID)),
		slog.String("society", rec.SocietyName),
		slog.String("event", string(ev)),
		slog.String("state", state.String()),
	)
	if lifecycle.Alert(state) {
		observability.VisitorAlerts.WithLabelValues("inside_refused").Inc()
		observability.GlobalLogger.WarnContext(ctx, "visitor inside with refused permission",
			slog.Uint64("visitor_id", uint64(rec.ID)),
			slog.String("society", rec.SocietyName),
			slog.String("state", state.String()),
		)
	}
}

func (s *VisitorService) visitorUpdate(ctx context.Context, rec *models.VisitorRecord) {
	s.router.Broadcast(ctx, notifications.SocietyRoom(rec.SocietyName), EventVisitorUpdate, map[string]interface{}{
		"visitor_id":   rec.ID,
		"visitor_name": rec.VisitorName,
		"flat_number":  rec.FlatNumber,
		"status":       rec.Status,
		"entry_time":   rec.EntryTime,
		"exit_time":    rec.ExitTime,
		"guard_name":   rec.GuardName,
	})
}

func (s *VisitorService) sendGate(ctx context.Context, command string, rec *models.VisitorRecord) {
	if !s.flags.EnabledOr(featureflags.GateBarrier, rec.SocietyName, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gatePublishTimeout)
	defer cancel()
	if err := s.gate.Publish(ctx, gate.NewCommand(command, rec, s.now())); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "gate command failed",
			slog.String("command", command),
			slog.Uint64("visitor_id", uint64(rec.ID)),
			slog.String("error", err.Error()),
		)
	}
}
