package repository

import (
	"context"
	"testing"

	"gatehouse/internal/models"
	"gatehouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_FindResident(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	resident := testutil.CreateUser(t, db, models.RoleResident, "GreenValley", "A-101", "Priya")
	testutil.CreateUser(t, db, models.RoleGuard, "GreenValley", "A-101", "Ravi")
	testutil.CreateUser(t, db, models.RoleResident, "BlueHills", "A-102", "Other")

	got, err := repo.FindResident(ctx, "GreenValley", "A-101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resident.ID, got.ID)

	none, err := repo.FindResident(ctx, "GreenValley", "Z-999")
	assert.NoError(t, err)
	assert.Nil(t, none)

	cross, err := repo.FindResident(ctx, "BlueHills", "A-101")
	assert.NoError(t, err)
	assert.Nil(t, cross)
}

func TestUserRepository_GetByIDAndUpdate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, models.RoleResident, "GreenValley", "A-101", "Priya")

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleResident, got.Role)

	got.FlatNumber = "C-303"
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "C-303", again.FlatNumber)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserRepository_ListBySociety(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)

	testutil.CreateUser(t, db, models.RoleResident, "GreenValley", "A-101", "Priya")
	testutil.CreateUser(t, db, models.RoleGuard, "GreenValley", "", "Ravi")
	testutil.CreateUser(t, db, models.RoleResident, "BlueHills", "A-101", "Other")

	all, err := repo.ListBySociety(context.Background(), "GreenValley", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	guards, err := repo.ListBySociety(context.Background(), "GreenValley", models.RoleGuard)
	require.NoError(t, err)
	require.Len(t, guards, 1)
	assert.Equal(t, "Ravi", guards[0].FullName)
}
