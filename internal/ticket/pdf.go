package ticket

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

const (
	pageMargin   = 15.0
	pageWidth    = 210.0
	pageHeight   = 297.0
	footerHeight = 20.0

	// QRSize is the printed edge length of the QR code in millimetres.
	QRSize      = 40.0
	blockHeight = 34.0

	qrImageName = "ticket-qr"
)

// Fields are the booking details printed on a ticket.
type Fields struct {
	BookingRef    string
	ParentName    string
	ChildName     string
	EventTitle    string
	EventDate     string
	VenueName     string
	Games         []model.Game
	TotalAmount   float64
	PaymentMethod string
	TransactionID string
}

func FieldsFrom(b model.Booking) Fields {
	return Fields{
		BookingRef:    b.BookingRef,
		ParentName:    b.ParentName,
		ChildName:     b.ChildName,
		EventTitle:    b.EventTitle,
		EventDate:     b.EventDate,
		VenueName:     b.VenueName,
		Games:         b.Games,
		TotalAmount:   b.TotalAmount,
		PaymentMethod: b.PaymentMethod,
		TransactionID: b.TransactionID,
	}
}

type Document struct {
	Bytes  []byte
	Pages  int
	Blocks int
	// QRPlaceholder is set when the QR image could not be embedded and a
	// labelled block was printed instead.
	QRPlaceholder bool
}

// RenderPDF lays out an A4 ticket with one block per game. A missing or
// unreadable qrPNG degrades to a placeholder instead of failing.
func RenderPDF(f Fields, qrPNG []byte) (*Document, error) {
	const op = "ticket.RenderPDF"

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, footerHeight)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-footerHeight + 5)
		pdf.SetDrawColor(200, 200, 200)
		pdf.Line(pageMargin, pdf.GetY(), pageWidth-pageMargin, pdf.GetY())
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("NIBOG - New India Baby Olympic Games | Page %d", pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "NIBOG OFFICIAL E-TICKET")
	pdf.Ln(16)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(pageMargin, pdf.GetY(), pageWidth-pageMargin, pdf.GetY())
	pdf.Ln(6)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(pageMargin, yStart, 120, QRSize+10, "F")

	pdf.SetXY(pageMargin+5, yStart+4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 7, "BOOKING SUMMARY")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		"Booking Ref: " + f.BookingRef,
		"Parent: " + f.ParentName,
		"Child: " + f.ChildName,
		fmt.Sprintf("Total Paid: INR %.2f", f.TotalAmount),
	} {
		pdf.SetX(pageMargin + 5)
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}

	placeholder := !embedQR(pdf, qrPNG, pageWidth-pageMargin-QRSize-5, yStart+5)
	if placeholder {
		drawQRPlaceholder(pdf, tr, pageWidth-pageMargin-QRSize-5, yStart+5, f.BookingRef)
	}

	pdf.SetY(yStart + QRSize + 14)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Present this QR code at the venue for entry verification.")
	pdf.Ln(10)

	sectionTitle(pdf, "EVENT DETAILS")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		"Event: " + f.EventTitle,
		"Date: " + f.EventDate,
		"Venue: " + f.VenueName,
	} {
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	sectionTitle(pdf, "GAMES")
	games := f.Games
	if len(games) == 0 {
		games = []model.Game{{Name: f.EventTitle}}
	}
	for i, g := range games {
		// keep a block on one page
		if pdf.GetY()+blockHeight > pageHeight-footerHeight {
			pdf.AddPage()
		}
		gameBlock(pdf, tr, i+1, g, f)
	}

	if err := pdf.Error(); err != nil {
		return nil, apperr.Wrap(err, apperr.AttachmentGenerationFailed, op)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Wrap(err, apperr.AttachmentGenerationFailed, op)
	}

	return &Document{
		Bytes:         buf.Bytes(),
		Pages:         pdf.PageCount(),
		Blocks:        len(games),
		QRPlaceholder: placeholder,
	}, nil
}

// embedQR reports whether the image was placed. A registration failure is
// cleared so the rest of the document still renders.
func embedQR(pdf *gofpdf.Fpdf, qrPNG []byte, x, y float64) bool {
	if len(qrPNG) == 0 {
		return false
	}
	opts := gofpdf.ImageOptions{ImageType: "png"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(qrPNG))
	if !pdf.Ok() {
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(qrImageName, x, y, QRSize, QRSize, false, opts, 0, "")
	return pdf.Ok()
}

func drawQRPlaceholder(pdf *gofpdf.Fpdf, tr func(string) string, x, y float64, ref string) {
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(x, y, QRSize, QRSize, "FD")
	pdf.SetXY(x, y+QRSize/2-8)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(QRSize, 6, "QR UNAVAILABLE", "", 2, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(QRSize, 5, "Show booking ref", "", 2, "C", false, 0, "")
	pdf.CellFormat(QRSize, 5, tr(ref), "", 2, "C", false, 0, "")
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func gameBlock(pdf *gofpdf.Fpdf, tr func(string) string, n int, g model.Game, f Fields) {
	y := pdf.GetY()
	pdf.SetDrawColor(200, 200, 200)
	pdf.Rect(pageMargin, y, pageWidth-2*pageMargin, blockHeight-4, "D")

	pdf.SetXY(pageMargin+4, y+3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Ticket %d: %s", n, strings.TrimSpace(g.Name))))
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 10)
	lines := []string{fmt.Sprintf("Participant: %s | Ref: %s", f.ChildName, f.BookingRef)}
	slot := fmt.Sprintf("Slot: %d", g.SlotID)
	if g.StartTime != "" {
		slot += fmt.Sprintf(" | %s - %s", g.StartTime, g.EndTime)
	}
	lines = append(lines, slot)
	if g.Price > 0 {
		lines = append(lines, fmt.Sprintf("Price: INR %.2f", g.Price))
	}
	for _, line := range lines {
		pdf.SetX(pageMargin + 4)
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.SetY(y + blockHeight)
}
