package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"gatehouse/internal/config"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(t *testing.T, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{
		cfg: &config.Config{JWTSecret: "admin-cli-test-secret-0123456789abcdef", JWTIssuer: "gatehouse", JWTAudience: "gatehouse-app"},
		db:  db,
		out: &out,
	}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetRole(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	u := testutil.CreateUser(t, db, models.RoleBusiness, "Green Acres", "", "Kiosk")

	_, err := run(t, db, "set-role", itoa(u.ID), "resident")
	require.Error(t, err, "residents need a flat")

	out, err := run(t, db, "set-role", itoa(u.ID), "resident", "--flat", "C-301")
	require.NoError(t, err)
	assert.Contains(t, out, "now resident")

	var stored models.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, models.RoleResident, stored.Role)
	assert.Equal(t, "C-301", stored.FlatNumber)

	_, err = run(t, db, "set-role", itoa(u.ID), "admin")
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.True(t, stored.IsAdmin)

	_, err = run(t, db, "set-role", itoa(u.ID), "superuser")
	assert.ErrorContains(t, err, "unknown role")
	_, err = run(t, db, "set-role", "abc", "guard")
	assert.ErrorContains(t, err, "invalid user id")
	_, err = run(t, db, "set-role", "999", "guard")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestAssignFlat(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	resident := testutil.CreateUser(t, db, models.RoleResident, "Green Acres", "A-101", "Meera")
	guard := testutil.CreateUser(t, db, models.RoleGuard, "Green Acres", "", "Ravi")

	_, err := run(t, db, "assign-flat", itoa(resident.ID), "B-202")
	require.NoError(t, err)
	var stored models.User
	require.NoError(t, db.First(&stored, resident.ID).Error)
	assert.Equal(t, "B-202", stored.FlatNumber)

	_, err = run(t, db, "assign-flat", itoa(guard.ID), "B-202")
	assert.ErrorContains(t, err, "only residents")
	_, err = run(t, db, "assign-flat", itoa(resident.ID), "flat #9!")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.CreateUser(t, db, models.RoleResident, "Green Acres", "A-101", "Meera")
	testutil.CreateUser(t, db, models.RoleGuard, "Green Acres", "", "Ravi")
	testutil.CreateUser(t, db, models.RoleGuard, "Blue Hills", "", "Sam")

	out, err := run(t, db, "list", "--society", "Green Acres")
	require.NoError(t, err)
	assert.Contains(t, out, "Meera")
	assert.Contains(t, out, "Ravi")
	assert.NotContains(t, out, "Sam")

	out, err = run(t, db, "list", "--society", "Green Acres", "--role", "guard")
	require.NoError(t, err)
	assert.NotContains(t, out, "Meera")

	out, err = run(t, db, "list", "--society", "Nowhere")
	require.NoError(t, err)
	assert.Contains(t, out, "No users found")

	_, err = run(t, db, "list")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	u := testutil.CreateUser(t, db, models.RoleGuard, "Green Acres", "", "Ravi")

	out, err := run(t, db, "token", itoa(u.ID), "--ttl", "5m")
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: "admin-cli-test-secret-0123456789abcdef", JWTIssuer: "gatehouse", JWTAudience: "gatehouse-app"}
	claims, err := middleware.ParseAccessToken(middleware.TokenConfigFrom(cfg), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
