package service

import (
	"context"
	"testing"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const androidChrome = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36"

func TestDescribeDevice(t *testing.T) {
	t.Parallel()
	assert.Empty(t, DescribeDevice(""))

	got := DescribeDevice(androidChrome)
	assert.Contains(t, got, "Chrome 120.0")
	assert.Contains(t, got, "Android")
	assert.Contains(t, got, "(mobile)")

	assert.Contains(t, DescribeDevice("Googlebot/2.1 (+http://www.google.com/bot.html)"), "bot")
}

func TestActivityService_RecordCapturesDevice(t *testing.T) {
	t.Parallel()
	repo := &activityRepoStub{}
	svc := NewActivityService(repo)
	g := guardIn(t, "GreenValley")

	ctx := WithUserAgent(context.Background(), androidChrome)
	svc.Record(ctx, g.Scope(), ActionVisitorEntry, "Amazon entered")

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, ActionVisitorEntry, e.Action)
	assert.Equal(t, uint(100), e.UserID)
	assert.Equal(t, models.RoleGuard, e.UserType)
	assert.Equal(t, "GreenValley", e.SocietyName)
	assert.Contains(t, e.Device, "Chrome")
}

func TestActivityService_List(t *testing.T) {
	t.Parallel()
	var gotSociety, gotPrefix string
	var gotLimit int
	repo := &activityRepoStub{listFn: func(_ context.Context, society, prefix string, limit int) ([]models.ActivityLog, error) {
		gotSociety, gotPrefix, gotLimit = society, prefix, limit
		return []models.ActivityLog{{Action: ActionVisitorExit}}, nil
	}}
	svc := NewActivityService(repo)

	logs, err := svc.List(context.Background(), adminIn(t, "GreenValley"), "visitor", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "GreenValley", gotSociety)
	assert.Equal(t, "visitor", gotPrefix)
	assert.Equal(t, defaultActivityLimit, gotLimit)

	_, err = svc.List(context.Background(), residentAt(t, 42, "GreenValley", "A-101"), "", 10)
	assertCode(t, err, models.CodeUnauthorized)
}

func TestActivityService_NilIsNoop(t *testing.T) {
	t.Parallel()
	var svc *ActivityService
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), guardIn(t, "GreenValley").Scope(), ActionVisitorExit, "")
	})
}
