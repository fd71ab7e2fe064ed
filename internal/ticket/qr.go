package ticket

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

const (
	// ModuleSize is the edge length of one QR module in pixels.
	ModuleSize = 8
	// QuietZone is the margin around the symbol, in modules.
	QuietZone = 2

	// byte-mode capacity of a version 40 symbol at level M
	maxPayloadBytes = 2331
)

// QRPayload is what the entry scanner reads. Field order is the wire order.
type QRPayload struct {
	Ref    string `json:"ref"`
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Game   string `json:"game"`
	SlotID int    `json:"slot_id"`
}

func PayloadFor(b model.Booking) QRPayload {
	p := QRPayload{
		Ref:  strings.TrimSpace(b.BookingRef),
		ID:   b.BookingID,
		Name: strings.TrimSpace(b.ChildName),
		Game: strings.Join(b.GameNames(), ", "),
	}
	if len(b.Games) > 0 {
		p.SlotID = b.Games[0].SlotID
	}
	return p
}

// BuildQRPayload serializes the booking's QR content. The same booking always
// yields the same bytes.
func BuildQRPayload(b model.Booking) (string, error) {
	const op = "ticket.BuildQRPayload"
	p := PayloadFor(b)
	if p.Ref == "" {
		return "", apperr.E(apperr.InvalidInput, op, "booking reference is empty")
	}
	if p.ID <= 0 {
		return "", apperr.Errorf(apperr.InvalidInput, op, "invalid booking id %d", p.ID)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", apperr.Wrap(err, apperr.Internal, op)
	}
	return string(data), nil
}

// RenderQR encodes payload as a PNG at error-correction level M with
// ModuleSize pixel modules and a QuietZone module margin.
func RenderQR(payload string) ([]byte, error) {
	const op = "ticket.RenderQR"
	if payload == "" {
		return nil, apperr.E(apperr.InvalidInput, op, "payload is empty")
	}
	if len(payload) > maxPayloadBytes {
		return nil, apperr.Errorf(apperr.QrTooLarge, op, "payload is %d bytes, capacity is %d", len(payload), maxPayloadBytes)
	}

	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.QrTooLarge, op)
	}
	q.DisableBorder = true

	img := drawModules(q.Bitmap())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, op)
	}
	return buf.Bytes(), nil
}

func drawModules(bitmap [][]bool) *image.Paletted {
	n := len(bitmap)
	side := (n + 2*QuietZone) * ModuleSize
	img := image.NewPaletted(image.Rect(0, 0, side, side), color.Palette{color.White, color.Black})

	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + QuietZone) * ModuleSize
			y0 := (y + QuietZone) * ModuleSize
			for dy := 0; dy < ModuleSize; dy++ {
				for dx := 0; dx < ModuleSize; dx++ {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}
	return img
}
