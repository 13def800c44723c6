package service

import (
	"context"
	"errors"
	"testing"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_NotifyUserPersistsThenBroadcasts(t *testing.T) {
	t.Parallel()
	notes := &notificationRepoStub{}
	bc := &recordingBroadcaster{}
	r := NewRouter(notes, bc)

	n := &models.NotificationRecord{UserID: 8, Title: "Hello", Message: "World", IsRead: true}
	require.NoError(t, r.NotifyUser(context.Background(), n))

	require.Len(t, notes.created, 1)
	assert.False(t, notes.created[0].IsRead)
	assert.Equal(t, models.NotificationGeneral, notes.created[0].Type)
	require.Len(t, bc.calls, 1)
	assert.Equal(t, "user_8", bc.calls[0].Room)
	assert.Equal(t, EventNotification, bc.calls[0].Event)
}

func TestRouter_PersistFailureSkipsBroadcast(t *testing.T) {
	t.Parallel()
	notes := &notificationRepoStub{createErr: errors.New("down")}
	bc := &recordingBroadcaster{}
	r := NewRouter(notes, bc)

	err := r.NotifyUser(context.Background(), &models.NotificationRecord{UserID: 8, Title: "t", Message: "m"})
	assert.Error(t, err)
	assert.Empty(t, bc.calls)
}

func TestRouter_NilBroadcaster(t *testing.T) {
	t.Parallel()
	r := NewRouter(&notificationRepoStub{}, nil)
	assert.NotPanics(t, func() {
		r.Broadcast(context.Background(), "society_GreenValley", EventVisitorUpdate, nil)
	})
}

func TestNotificationService_Send(t *testing.T) {
	t.Parallel()
	resident := models.User{ID: 42, Role: models.RoleResident, SocietyName: "GreenValley", FlatNumber: "A-101"}
	outsider := models.User{ID: 43, Role: models.RoleResident, SocietyName: "BlueHills", FlatNumber: "A-101"}
	notes := &notificationRepoStub{}
	bc := &recordingBroadcaster{}
	svc := NewNotificationService(notes, usersWith(resident, outsider), NewRouter(notes, bc), 0)
	admin := adminIn(t, "GreenValley")
	ctx := context.Background()

	n, err := svc.Send(ctx, admin, SendNotificationInput{UserID: 42, Title: " Water outage ", Message: "Tomorrow 10-12"})
	require.NoError(t, err)
	assert.Equal(t, "Water outage", n.Title)
	assert.Len(t, bc.calls, 1)

	_, err = svc.Send(ctx, admin, SendNotificationInput{UserID: 43, Title: "x", Message: "y"})
	assertCode(t, err, models.CodeTenantMismatch)

	_, err = svc.Send(ctx, admin, SendNotificationInput{UserID: 99, Title: "x", Message: "y"})
	assertCode(t, err, models.CodeNotFound)

	_, err = svc.Send(ctx, admin, SendNotificationInput{UserID: 42})
	assertCode(t, err, models.CodeValidation)

	list, unread, err := svc.Inbox(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), unread)
}
