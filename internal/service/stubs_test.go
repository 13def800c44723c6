package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gatehouse/internal/gate"
	"gatehouse/internal/models"
	"gatehouse/internal/repository"
	"gatehouse/internal/tenancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// visitorRepoStub is a stub for repository.VisitorRepository.
type visitorRepoStub struct {
	createFn  func(context.Context, *models.VisitorRecord) error
	getByIDFn func(context.Context, uint) (*models.VisitorRecord, error)
	updateFn  func(context.Context, *models.VisitorRecord, []string) (*models.VisitorRecord, error)
	listFn    func(context.Context, tenancy.VisitorScope, repository.VisitorFilter) ([]models.VisitorRecord, error)

	updates int
}

func (s *visitorRepoStub) Create(ctx context.Context, rec *models.VisitorRecord) error {
	return s.createFn(ctx, rec)
}
func (s *visitorRepoStub) GetByID(ctx context.Context, id uint) (*models.VisitorRecord, error) {
	return s.getByIDFn(ctx, id)
}
func (s *visitorRepoStub) Update(ctx context.Context, rec *models.VisitorRecord, cols []string) (*models.VisitorRecord, error) {
	s.updates++
	return s.updateFn(ctx, rec, cols)
}
func (s *visitorRepoStub) List(ctx context.Context, scope tenancy.VisitorScope, f repository.VisitorFilter) ([]models.VisitorRecord, error) {
	return s.listFn(ctx, scope, f)
}

// memVisitorRepo backs the stub with a map so scenarios can run end to end.
func memVisitorRepo(seed ...models.VisitorRecord) (*visitorRepoStub, map[uint]*models.VisitorRecord) {
	rows := make(map[uint]*models.VisitorRecord)
	var nextID uint
	for i := range seed {
		rec := seed[i]
		rows[rec.ID] = &rec
		if rec.ID > nextID {
			nextID = rec.ID
		}
	}
	stub := &visitorRepoStub{}
	stub.createFn = func(_ context.Context, rec *models.VisitorRecord) error {
		nextID++
		rec.ID = nextID
		cp := *rec
		rows[rec.ID] = &cp
		return nil
	}
	stub.getByIDFn = func(_ context.Context, id uint) (*models.VisitorRecord, error) {
		rec, ok := rows[id]
		if !ok {
			return nil, models.NewNotFoundError("Visitor", id)
		}
		cp := *rec
		return &cp, nil
	}
	stub.updateFn = func(_ context.Context, rec *models.VisitorRecord, cols []string) (*models.VisitorRecord, error) {
		stored, ok := rows[rec.ID]
		if !ok {
			return nil, models.NewNotFoundError("Visitor", rec.ID)
		}
		stored.CopyColumns(rec, cols)
		cp := *stored
		return &cp, nil
	}
	stub.listFn = func(_ context.Context, scope tenancy.VisitorScope, f repository.VisitorFilter) ([]models.VisitorRecord, error) {
		var out []models.VisitorRecord
		for _, rec := range rows {
			if !scope.Contains(rec) {
				continue
			}
			if f.Lifecycle != "" && rec.Status != f.Lifecycle {
				continue
			}
			if f.Permission != "" && rec.PermissionStatus != f.Permission {
				continue
			}
			out = append(out, *rec)
		}
		return out, nil
	}
	return stub, rows
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn      func(context.Context, uint) (*models.User, error)
	findResidentFn func(context.Context, string, string) (*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) FindResident(ctx context.Context, society, flat string) (*models.User, error) {
	return s.findResidentFn(ctx, society, flat)
}
func (s *userRepoStub) ListBySociety(context.Context, string, models.Role) ([]models.User, error) {
	return nil, nil
}
func (s *userRepoStub) Create(context.Context, *models.User) error { return nil }
func (s *userRepoStub) Update(context.Context, *models.User) error { return nil }

func usersWith(users ...models.User) *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			for i := range users {
				if users[i].ID == id {
					u := users[i]
					return &u, nil
				}
			}
			return nil, models.NewNotFoundError("User", id)
		},
		findResidentFn: func(_ context.Context, society, flat string) (*models.User, error) {
			for i := range users {
				u := users[i]
				if u.Role == models.RoleResident && u.SocietyName == society && u.FlatNumber == flat {
					return &u, nil
				}
			}
			return nil, nil
		},
	}
}

// notificationRepoStub records created notifications.
type notificationRepoStub struct {
	mu        sync.Mutex
	created   []models.NotificationRecord
	createErr error
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.NotificationRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *n)
	return nil
}
func (s *notificationRepoStub) ListForUser(_ context.Context, userID uint, _ int) ([]models.NotificationRecord, error) {
	var out []models.NotificationRecord
	for _, n := range s.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}
func (s *notificationRepoStub) CountUnread(_ context.Context, userID uint) (int64, error) {
	var c int64
	for _, n := range s.created {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}
func (s *notificationRepoStub) MarkRead(context.Context, uint, uint) error       { return nil }
func (s *notificationRepoStub) MarkAllRead(context.Context, uint) (int64, error) { return 0, nil }

// activityRepoStub records audit entries.
type activityRepoStub struct {
	entries []models.ActivityLog
	listFn  func(context.Context, string, string, int) ([]models.ActivityLog, error)
}

func (s *activityRepoStub) Create(_ context.Context, e *models.ActivityLog) error {
	s.entries = append(s.entries, *e)
	return nil
}
func (s *activityRepoStub) ListBySociety(ctx context.Context, society, prefix string, limit int) ([]models.ActivityLog, error) {
	if s.listFn != nil {
		return s.listFn(ctx, society, prefix, limit)
	}
	return s.entries, nil
}

type broadcastCall struct {
	Room    string
	Event   string
	Payload map[string]interface{}
}

// recordingBroadcaster captures broadcasts instead of sending them.
type recordingBroadcaster struct {
	calls []broadcastCall
	err   error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, room, event string, payload interface{}) error {
	m, _ := payload.(map[string]interface{})
	b.calls = append(b.calls, broadcastCall{Room: room, Event: event, Payload: m})
	return b.err
}

// gateRecorder captures barrier commands.
type gateRecorder struct {
	cmds []gate.Command
	err  error
}

func (g *gateRecorder) Publish(_ context.Context, cmd gate.Command) error {
	g.cmds = append(g.cmds, cmd)
	return g.err
}
func (g *gateRecorder) Close() {}

func mustResolve(t *testing.T, u models.User) tenancy.Actor {
	t.Helper()
	a, err := tenancy.Resolve(&u)
	require.NoError(t, err)
	return a
}

func guardIn(t *testing.T, society string) tenancy.Guard {
	return mustResolve(t, models.User{ID: 100, FullName: "Ravi", Role: models.RoleGuard, SocietyName: society}).(tenancy.Guard)
}

func residentAt(t *testing.T, id uint, society, flat string) tenancy.Resident {
	return mustResolve(t, models.User{ID: id, FullName: "Resident " + flat, Role: models.RoleResident, SocietyName: society, FlatNumber: flat}).(tenancy.Resident)
}

func adminIn(t *testing.T, society string) tenancy.Admin {
	return mustResolve(t, models.User{ID: 300, FullName: "Admin", Role: models.RoleAdmin, SocietyName: society, IsAdmin: true}).(tenancy.Admin)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
