// Package seed provides helpers to create demo data for development and
// tests: societies with staff and residents, and visits in every
// lifecycle state.
package seed

import (
	"fmt"
	"log"
	"time"

	"gatehouse/internal/lifecycle"
	"gatehouse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Script is the event sequence a seeded visit is driven through.
type Script []lifecycle.Event

// Scripts covers every reachable (lifecycle, permission) pair, including the
// inside-but-denied alert an admin review is meant to settle.
var Scripts = []Script{
	{lifecycle.Log},
	{lifecycle.Log, lifecycle.RequestPermission},
	{lifecycle.Log, lifecycle.RequestPermission, lifecycle.Allow},
	{lifecycle.Log, lifecycle.RequestPermission, lifecycle.Deny},
	{lifecycle.Log, lifecycle.RequestPermission, lifecycle.Allow, lifecycle.CheckIn},
	{lifecycle.Log, lifecycle.RequestPermission, lifecycle.Allow, lifecycle.CheckIn, lifecycle.CheckOut},
	{lifecycle.Log, lifecycle.Approve, lifecycle.CheckIn, lifecycle.CheckOut},
	{lifecycle.Log, lifecycle.Reject},
	{lifecycle.Log, lifecycle.Allow, lifecycle.CheckIn, lifecycle.Reject},
	{lifecycle.ResidentPreApprove},
	{lifecycle.ResidentPreApprove, lifecycle.CheckIn},
	{lifecycle.AdminPreApprove},
	{lifecycle.AdminPreApprove, lifecycle.CheckIn, lifecycle.CheckOut},
}

var purposes = []string{"Delivery", "Guest", "Maintenance", "Cab pickup", "Housekeeping", "Courier", "Plumber"}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed picks a
// random seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{db: db, opts: opts, fake: gofakeit.New(opts.RandSeed), nextID: 1000}
}

// CreateUser constructs and persists a user with role in society.
// Optional override functions may modify the user before saving.
func (f *Factory) CreateUser(role models.Role, society, flat string, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		FullName:    f.fake.Name(),
		Phone:       f.fake.Phone(),
		Email:       f.fake.Email(),
		Role:        role,
		SocietyName: society,
		FlatNumber:  flat,
		IsApproved:  true,
		IsAdmin:     role == models.RoleAdmin,
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s %s %q", user.Role, user.SocietyName, user.FullName)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Cast is who a seeded visit can name.
type Cast struct {
	Guard    *models.User
	Resident *models.User
}

// BuildVisit drives a fresh record through script with a strict machine and
// fills in the timestamps and actors each step implies. It does not persist.
func (f *Factory) BuildVisit(society, flat string, cast Cast, script Script) (*models.VisitorRecord, error) {
	if len(script) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	m := lifecycle.New(true)
	state, err := m.Start(script[0])
	if err != nil {
		return nil, err
	}

	created := f.pastTime()
	rec := &models.VisitorRecord{
		SocietyName:  society,
		FlatNumber:   flat,
		VisitorName:  f.fake.Name(),
		VisitorPhone: f.fake.Phone(),
		Purpose:      f.fake.RandomString(purposes),
		CreatedAt:    created,
	}
	if f.fake.Number(0, 4) == 0 {
		rec.ServiceProviderName = f.fake.Company()
		rec.IsPreApprovedService = true
	}

	switch script[0] {
	case lifecycle.Log:
		f.stampGuard(rec, cast.Guard)
	case lifecycle.ResidentPreApprove:
		rec.IsPreApproved = true
		if cast.Resident != nil {
			id := cast.Resident.ID
			rec.ResidentID = &id
		}
	case lifecycle.AdminPreApprove:
		rec.IsPreApproved = true
	}
	if rec.IsPreApproved {
		day := created.Add(24 * time.Hour).UTC().Truncate(24 * time.Hour)
		rec.ExpectedDate = &day
		rec.ExpectedTime = fmt.Sprintf("%02d:%02d", f.fake.Number(8, 20), 15*f.fake.Number(0, 3))
	}

	at := created
	for _, ev := range script[1:] {
		state, err = m.Apply(state, ev)
		if err != nil {
			return nil, fmt.Errorf("script %v: %w", script, err)
		}
		at = at.Add(time.Duration(f.fake.Number(2, 45)) * time.Minute)
		switch ev {
		case lifecycle.Allow, lifecycle.Deny:
			if cast.Resident != nil && rec.ResidentID == nil {
				id := cast.Resident.ID
				rec.ResidentID = &id
			}
		case lifecycle.CheckIn:
			t := at
			rec.EntryTime, rec.GuardCheckInTime = &t, &t
			f.stampGuard(rec, cast.Guard)
		case lifecycle.CheckOut:
			t := at.Add(time.Duration(f.fake.Number(10, 180)) * time.Minute)
			rec.ExitTime, rec.GuardCheckOutTime = &t, &t
			at = t
		}
	}
	rec.Status, rec.PermissionStatus = state.Lifecycle, state.Permission
	rec.UpdatedAt = at
	return rec, nil
}

func (f *Factory) stampGuard(rec *models.VisitorRecord, guard *models.User) {
	if guard == nil {
		return
	}
	id := guard.ID
	rec.GuardID = &id
	rec.GuardName = guard.FullName
}

// pastTime spreads visits over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.fake.Number(0, maxDays-1))*24*time.Hour +
		time.Duration(f.fake.Number(0, 23))*time.Hour +
		time.Duration(f.fake.Number(0, 59))*time.Minute
	return time.Now().UTC().Add(-back)
}

// CreateVisitsBatch persists visits in batches of opts.BatchSize.
func (f *Factory) CreateVisitsBatch(visits []*models.VisitorRecord) error {
	if len(visits) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, v := range visits {
			f.nextID++
			v.ID = f.nextID
		}
		log.Printf("[dry-run] CreateVisitsBatch: %d visits (no DB write)", len(visits))
		return nil
	}
	size := f.opts.BatchSize
	if size <= 0 {
		size = 100
	}
	return f.db.CreateInBatches(visits, size).Error
}

// CreatePrompt writes the inbox entry a resident gets for a pending visit.
func (f *Factory) CreatePrompt(resident *models.User, rec *models.VisitorRecord) error {
	if f.opts.DryRun {
		return nil
	}
	id := rec.ID
	n := &models.NotificationRecord{
		UserID:    resident.ID,
		Title:     "Visitor Permission Request",
		Message:   fmt.Sprintf("%s wants to visit flat %s (%s)", rec.VisitorName, rec.FlatNumber, rec.Purpose),
		Type:      models.NotificationVisitorPermission,
		RelatedID: &id,
		CreatedAt: rec.CreatedAt,
	}
	return f.db.Create(n).Error
}
