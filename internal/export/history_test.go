package export

import (
	"bytes"
	"testing"
	"time"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestHistoryXLSX(t *testing.T) {
	entry := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	records := []models.VisitorRecord{
		{
			ID: 7, VisitorName: "Amazon", VisitorPhone: "999", FlatNumber: "A-101",
			Status: models.LifecycleInside, PermissionStatus: models.PermissionAllowed,
			GuardName: "Ravi", EntryTime: &entry, CreatedAt: entry.Add(-time.Minute),
		},
		{
			ID: 8, VisitorName: "Plumber", VisitorPhone: "555-0100", FlatNumber: "B-202",
			Status: models.LifecyclePreApproved, PermissionStatus: models.PermissionPreApproved,
			IsPreApproved: true, CreatedAt: entry,
		},
	}

	data, err := HistoryXLSX(records, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{HistorySheet}, f.GetSheetList())

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, HistoryHeader, rows[0])

	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "Amazon", rows[1][1])
	assert.Equal(t, "inside", rows[1][5])
	assert.Equal(t, "2026-05-04 09:30", rows[1][9])

	assert.Equal(t, "Plumber", rows[2][1])
	assert.Equal(t, "pre-approved", rows[2][6])
	assert.Equal(t, "Yes", rows[2][7])
}

func TestHistoryXLSX_EmptyHasHeaderOnly(t *testing.T) {
	data, err := HistoryXLSX(nil, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
