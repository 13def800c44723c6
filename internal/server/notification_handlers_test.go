package server

import (
	"fmt"
	"net/http"
	"testing"

	"gatehouse/internal/models"
	"gatehouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotification(t *testing.T, env *testEnv, userID uint, title string) models.NotificationRecord {
	t.Helper()
	n := models.NotificationRecord{UserID: userID, Title: title, Message: title + " body", Type: "general"}
	require.NoError(t, env.db.Create(&n).Error)
	return n
}

func TestNotifications_Inbox(t *testing.T) {
	env := newEnv(t, false)
	p := env.seedPeople(t)
	first := seedNotification(t, env, p.resident.ID, "Water shutdown")
	seedNotification(t, env, p.resident.ID, "Lift maintenance")
	seedNotification(t, env, p.neighbour.ID, "Not yours")

	resp := env.do(t, http.MethodGet, "/api/notifications", p.resident, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["notifications"], 2)
	assert.Equal(t, float64(2), body["unread_count"])

	t.Run("someone else's entry is not found", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), p.neighbour, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var stored models.NotificationRecord
		require.NoError(t, env.db.First(&stored, first.ID).Error)
		assert.False(t, stored.IsRead)
	})

	t.Run("mark one read", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), p.resident, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/notifications", p.resident, nil)
		assert.Equal(t, float64(1), decodeBody(t, resp)["unread_count"])
	})

	t.Run("mark all read", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications/read-all", p.resident, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), decodeBody(t, resp)["updated"])

		resp = env.do(t, http.MethodGet, "/api/notifications", p.neighbour, nil)
		assert.Equal(t, float64(1), decodeBody(t, resp)["unread_count"])
	})

	t.Run("bad id", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications/zero/read", p.resident, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSendNotification(t *testing.T) {
	env := newEnv(t, false)
	p := env.seedPeople(t)
	far := testutil.CreateUser(t, env.db, models.RoleResident, "Blue Hills", "C-303", "Dev")

	t.Run("admin notifies a resident", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications", p.admin, SendNotificationRequest{
			UserID:  p.resident.ID,
			Title:   "Parking",
			Message: "Please move your car",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/notifications", p.resident, nil)
		assert.Equal(t, float64(1), decodeBody(t, resp)["unread_count"])
	})

	t.Run("other society", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications", p.admin, SendNotificationRequest{
			UserID: far.ID, Title: "Hi", Message: "Hello",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeTenantMismatch, decodeBody(t, resp)["code"])
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications", p.admin, SendNotificationRequest{UserID: p.resident.ID})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-admins", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/notifications", p.guard, SendNotificationRequest{
			UserID: p.resident.ID, Title: "Hi", Message: "Hello",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
