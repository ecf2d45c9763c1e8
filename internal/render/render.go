// Package render produces the printable receipt artifact: a fixed
// narrow-format PDF with an embedded QR payload. Layouts are built as plain
// element lists and handed to a generic PDF writer, so the receipt shape
// lives in one place and the PDF engine in another.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer renders receipt views into finished PDF artifacts.
type Renderer struct {
	loc *time.Location
	log zerolog.Logger
}

// New creates a Renderer. Transaction timestamps are presented in loc.
func New(loc *time.Location, log zerolog.Logger) *Renderer {
	return &Renderer{loc: loc, log: log}
}

// Receipt renders the view into PDF bytes. A missing or unreadable logo is
// an isolated failure: it is logged and rendering proceeds without it. Any
// other failure aborts the render.
func (r *Renderer) Receipt(view ReceiptView) ([]byte, error) {
	view.Record.TransactionDate = view.Record.TransactionDate.In(r.loc)

	qr, err := qrcode.Encode(QRPayload(view), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("Receipt: encoding QR payload: %w", err)
	}

	logo, logoType := r.loadLogo(view.Business.LogoPath, view.Record.Code)

	pdfBytes, err := writePDF(buildLayout(view, logo, logoType, qr))
	if err != nil {
		return nil, fmt.Errorf("Receipt: %w", err)
	}
	return pdfBytes, nil
}

// loadLogo reads the profile logo if one is configured. Failures here never
// fail the render.
func (r *Renderer) loadLogo(path, code string) ([]byte, string) {
	if path == "" {
		return nil, ""
	}

	var imgType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		imgType = "PNG"
	case ".jpg", ".jpeg":
		imgType = "JPG"
	default:
		r.log.Warn().Str("code", code).Str("logo", path).Msg("Unsupported logo format, rendering without logo")
		return nil, ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn().Err(err).Str("code", code).Str("logo", path).Msg("Could not load logo, rendering without it")
		return nil, ""
	}
	return data, imgType
}
