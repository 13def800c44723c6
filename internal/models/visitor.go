package models

import "time"

// LifecycleState is the physical presence status of a visit.
type LifecycleState string

const (
	LifecycleCreated             LifecycleState = "created"
	LifecyclePermissionRequested LifecycleState = "permission_requested"
	LifecyclePreApproved         LifecycleState = "pre_approved"
	LifecycleInside              LifecycleState = "inside"
	LifecycleExited              LifecycleState = "exited"
)

// PermissionState is the authorization decision for a visit.
type PermissionState string

const (
	PermissionPending     PermissionState = "pending"
	PermissionAllowed     PermissionState = "allowed"
	PermissionDenied      PermissionState = "denied"
	PermissionApproved    PermissionState = "approved"
	PermissionRejected    PermissionState = "rejected"
	PermissionPreApproved PermissionState = "pre-approved"
)

// Refused reports whether the decision bars entry.
func (p PermissionState) Refused() bool {
	return p == PermissionDenied || p == PermissionRejected
}

// VisitorRecord is one physical visit attempt.
type VisitorRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SocietyName string `gorm:"size:120;not null;index:idx_visitors_society_flat" json:"society_name"`
	FlatNumber  string `gorm:"size:20;not null;index:idx_visitors_society_flat" json:"flat_number"`

	VisitorName          string `gorm:"size:120;not null" json:"visitor_name"`
	VisitorPhone         string `gorm:"size:20;not null" json:"visitor_phone"`
	IDType               string `gorm:"size:40" json:"id_type,omitempty"`
	IDNumber             string `gorm:"size:60" json:"id_number,omitempty"`
	Purpose              string `gorm:"size:255" json:"purpose,omitempty"`
	ServiceProviderName  string `gorm:"size:120" json:"service_provider_name,omitempty"`
	IsPreApprovedService bool   `gorm:"default:false" json:"is_pre_approved_service"`

	GuardID    *uint  `gorm:"index" json:"guard_id,omitempty"`
	GuardName  string `gorm:"size:120" json:"guard_name,omitempty"`
	ResidentID *uint  `gorm:"index" json:"resident_id,omitempty"`

	Status           LifecycleState  `gorm:"column:status;type:varchar(30);not null;default:'created';index" json:"status"`
	PermissionStatus PermissionState `gorm:"column:permission_status;type:varchar(20);not null;default:'pending';index" json:"permission_status"`
	IsPreApproved    bool            `gorm:"default:false" json:"is_pre_approved"`

	EntryTime         *time.Time `json:"entry_time,omitempty"`
	ExitTime          *time.Time `json:"exit_time,omitempty"`
	GuardCheckInTime  *time.Time `json:"guard_check_in_time,omitempty"`
	GuardCheckOutTime *time.Time `json:"guard_check_out_time,omitempty"`
	ExpectedDate      *time.Time `gorm:"type:date" json:"expected_date,omitempty"`
	ExpectedTime      string     `gorm:"size:5" json:"expected_time,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (VisitorRecord) TableName() string {
	return "visitor_logs"
}

// transitionColumns are the columns an engine transition may write. Each
// transition persists only the ones it changed, so a concurrent write to
// another column survives.
var transitionColumns = []struct {
	name  string
	equal func(a, b *VisitorRecord) bool
	copy  func(dst, src *VisitorRecord)
}{
	{"status",
		func(a, b *VisitorRecord) bool { return a.Status == b.Status },
		func(d, s *VisitorRecord) { d.Status = s.Status }},
	{"permission_status",
		func(a, b *VisitorRecord) bool { return a.PermissionStatus == b.PermissionStatus },
		func(d, s *VisitorRecord) { d.PermissionStatus = s.PermissionStatus }},
	{"is_pre_approved",
		func(a, b *VisitorRecord) bool { return a.IsPreApproved == b.IsPreApproved },
		func(d, s *VisitorRecord) { d.IsPreApproved = s.IsPreApproved }},
	{"resident_id",
		func(a, b *VisitorRecord) bool { return equalUint(a.ResidentID, b.ResidentID) },
		func(d, s *VisitorRecord) { d.ResidentID = s.ResidentID }},
	{"guard_id",
		func(a, b *VisitorRecord) bool { return equalUint(a.GuardID, b.GuardID) },
		func(d, s *VisitorRecord) { d.GuardID = s.GuardID }},
	{"guard_name",
		func(a, b *VisitorRecord) bool { return a.GuardName == b.GuardName },
		func(d, s *VisitorRecord) { d.GuardName = s.GuardName }},
	{"entry_time",
		func(a, b *VisitorRecord) bool { return equalTime(a.EntryTime, b.EntryTime) },
		func(d, s *VisitorRecord) { d.EntryTime = s.EntryTime }},
	{"exit_time",
		func(a, b *VisitorRecord) bool { return equalTime(a.ExitTime, b.ExitTime) },
		func(d, s *VisitorRecord) { d.ExitTime = s.ExitTime }},
	{"guard_check_in_time",
		func(a, b *VisitorRecord) bool { return equalTime(a.GuardCheckInTime, b.GuardCheckInTime) },
		func(d, s *VisitorRecord) { d.GuardCheckInTime = s.GuardCheckInTime }},
	{"guard_check_out_time",
		func(a, b *VisitorRecord) bool { return equalTime(a.GuardCheckOutTime, b.GuardCheckOutTime) },
		func(d, s *VisitorRecord) { d.GuardCheckOutTime = s.GuardCheckOutTime }},
}

// ChangedColumns lists the transition columns that differ between before
// and after, in a fixed order.
func ChangedColumns(before, after *VisitorRecord) []string {
	var cols []string
	for _, c := range transitionColumns {
		if !c.equal(before, after) {
			cols = append(cols, c.name)
		}
	}
	return cols
}

// CopyColumns copies the named transition columns from src into r.
// Unknown names are ignored.
func (r *VisitorRecord) CopyColumns(src *VisitorRecord, cols []string) {
	for _, name := range cols {
		for _, c := range transitionColumns {
			if c.name == name {
				c.copy(r, src)
			}
		}
	}
}

func equalUint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
