package credential

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/models"
)

func sampleRecord() *models.VisitorRecord {
	return &models.VisitorRecord{
		ID:            42,
		VisitorName:   "Amazon",
		VisitorPhone:  "999",
		FlatNumber:    "A-101",
		SocietyName:   "GreenValley",
		Purpose:       "Delivery",
		IsPreApproved: true,
		CreatedAt:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, id := range []uint{1, 42, 1 << 31} {
		rec := sampleRecord()
		rec.ID = id

		body, err := Encode(FromRecord(rec))
		require.NoError(t, err)

		p, err := Decode(string(body))
		require.NoError(t, err)
		assert.Equal(t, int64(id), p.VisitorID)
	}
}

func TestFromRecord(t *testing.T) {
	p := FromRecord(sampleRecord())
	assert.Equal(t, "GreenValley", p.SocietyName)
	assert.True(t, p.IsPreApproved)
	assert.Equal(t, "2026-03-01T09:30:00Z", p.CreatedAt)

	rec := sampleRecord()
	rec.IsPreApproved = false
	assert.False(t, FromRecord(rec).IsPreApproved)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not json":    "visitor-42",
		"missing id":  `{"visitor_name":"Amazon"}`,
		"zero id":     `{"visitor_id":0}`,
		"negative id": `{"visitor_id":-4}`,
		"string id":   `{"visitor_id":"42"}`,
		"truncated":   `{"visitor_id":42`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(raw)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeMalformedCredential))
		})
	}
}

func TestDecode_IgnoresClaimedState(t *testing.T) {
	p, err := Decode(`{"visitor_id":7,"is_pre_approved":true,"status":"inside"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.VisitorID)
}

func TestCodec_PNG(t *testing.T) {
	c := NewCodec(256)
	img, err := c.PNG(FromRecord(sampleRecord()))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")))

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}

func TestCodec_DataURL(t *testing.T) {
	url, err := NewCodec(0).DataURL(FromRecord(sampleRecord()))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}
