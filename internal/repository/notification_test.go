package repository

import (
	"context"
	"testing"

	"gatehouse/internal/models"
	"gatehouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_Inbox(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, models.RoleResident, "GreenValley", "A-101", "Priya")
	other := testutil.CreateUser(t, db, models.RoleResident, "GreenValley", "A-102", "Sam")

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.NotificationRecord{
			UserID: owner.ID, Title: "Visitor Permission Request", Message: "m", Type: models.NotificationVisitorPermission,
		}))
	}
	foreign := &models.NotificationRecord{UserID: other.ID, Title: "t", Message: "m", Type: models.NotificationGeneral}
	require.NoError(t, repo.Create(ctx, foreign))

	list, err := repo.ListForUser(ctx, owner.ID, 50)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	unread, err := repo.CountUnread(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	require.NoError(t, repo.MarkRead(ctx, owner.ID, list[0].ID))
	unread, _ = repo.CountUnread(ctx, owner.ID)
	assert.Equal(t, int64(2), unread)

	err = repo.MarkRead(ctx, owner.ID, foreign.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound), "marking someone else's notification must fail")

	n, err := repo.MarkAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	otherUnread, _ := repo.CountUnread(ctx, other.ID)
	assert.Equal(t, int64(1), otherUnread)
}
