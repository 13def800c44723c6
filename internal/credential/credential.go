// Package credential encodes a visit into a portable QR locator and back.
// The payload carries no authority of its own; verification always re-reads
// the stored record by id.
package credential

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"gatehouse/internal/models"
)

// DefaultSize is the rendered QR edge length in pixels.
const DefaultSize = 256

// Payload is the JSON document serialized into the QR symbol.
type Payload struct {
	VisitorID     int64  `json:"visitor_id"`
	VisitorName   string `json:"visitor_name"`
	VisitorPhone  string `json:"visitor_phone"`
	FlatNumber    string `json:"flat_number"`
	SocietyName   string `json:"society_name"`
	Purpose       string `json:"purpose"`
	IsPreApproved bool   `json:"is_pre_approved"`
	CreatedAt     string `json:"created_at"`
}

// FromRecord builds the payload describing rec.
func FromRecord(rec *models.VisitorRecord) Payload {
	p := Payload{
		VisitorID:     int64(rec.ID),
		VisitorName:   rec.VisitorName,
		VisitorPhone:  rec.VisitorPhone,
		FlatNumber:    rec.FlatNumber,
		SocietyName:   rec.SocietyName,
		Purpose:       rec.Purpose,
		IsPreApproved: rec.IsPreApproved,
	}
	if !rec.CreatedAt.IsZero() {
		p.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

// Encode serializes the payload to compact JSON.
func Encode(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a scanned payload. Anything that does not yield a positive
// visitor id is a malformed credential.
func Decode(raw string) (Payload, error) {
	var p Payload
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p, models.NewMalformedCredentialError(errors.New("empty payload"))
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, models.NewMalformedCredentialError(err)
	}
	if p.VisitorID <= 0 {
		return Payload{}, models.NewMalformedCredentialError(errors.New("missing visitor_id"))
	}
	return p, nil
}

// Codec renders payloads as QR images.
type Codec struct {
	Size int
}

// NewCodec returns a codec rendering size x size images.
func NewCodec(size int) Codec {
	if size <= 0 {
		size = DefaultSize
	}
	return Codec{Size: size}
}

// PNG renders the payload as a QR code PNG at low error correction.
func (c Codec) PNG(p Payload) ([]byte, error) {
	body, err := Encode(p)
	if err != nil {
		return nil, err
	}
	size := c.Size
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(string(body), qrcode.Low, size)
}

// DataURL renders the payload as an embeddable base64 PNG data URL.
func (c Codec) DataURL(p Payload) (string, error) {
	png, err := c.PNG(p)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
