// Package sheet renders the printable sign-in sheet PDF. Each sheet
// carries a QR code identifying the event so a photographed sheet can be
// routed back to its class occurrence.
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// US Letter layout, all in mm.
const (
	pageWidth  = 215.9
	pageHeight = 279.4
	margin     = 15.0
	qrSize     = 30.0

	rosterRowHeight    = 7.0
	tableSeatRowHeight = 12.0

	titleFontSize  = 18.0
	headerFontSize = 12.0
	normalFontSize = 10.0
	smallFontSize  = 8.0

	nameColRatio  = 0.60
	tableColRatio = 0.15

	mailingSectionHeight = 47.0
)

// QrPayload is the JSON encoded into the sheet's QR code. The extraction
// service reads it back so a photo identifies its own event.
type QrPayload struct {
	App     string `json:"app"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Teacher string `json:"teacher"`
}

// AppName tags QR payloads produced by this system.
const AppName = "bridge-attendance"

// Config describes one sheet to render.
type Config struct {
	ClassName   string
	Teacher     string
	Date        time.Time
	Location    string
	EventID     string
	Roster      []string // nil means blank table/seat mode
	BlankRows   int
	MailingList bool
	MailingRows int
}

// Payload builds the QR payload for this sheet.
func (c Config) Payload() QrPayload {
	return QrPayload{
		App:     AppName,
		EventID: c.EventID,
		Name:    c.ClassName,
		Date:    c.Date.Format("2006-01-02"),
		Teacher: c.Teacher,
	}
}

// FormatDateDisplay renders the human-readable date line on the sheet.
func FormatDateDisplay(date time.Time) string {
	return date.Format("Monday, January 2, 2006")
}

var seats = [4]string{"North", "South", "East", "West"}

// Generate renders the sheet and writes the PDF to w.
func Generate(cfg Config, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	contentWidth := pageWidth - 2*margin

	y, err := drawHeader(pdf, cfg, contentWidth)
	if err != nil {
		return err
	}

	mailingHeight := 0.0
	if cfg.MailingList {
		mailingHeight = mailingSectionHeight
	}

	if cfg.Roster == nil {
		drawBlankGrid(pdf, cfg, y, contentWidth, mailingHeight)
	} else {
		drawRosterGrid(pdf, cfg, y, contentWidth, mailingHeight)
	}

	if cfg.MailingList {
		// always on the first page, pinned to the bottom margin
		pdf.SetPage(1)
		drawMailingSection(pdf, cfg.MailingRows, contentWidth)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func drawHeader(pdf *gofpdf.Fpdf, cfg Config, contentWidth float64) (float64, error) {
	payload, err := json.Marshal(cfg.Payload())
	if err != nil {
		return 0, fmt.Errorf("failed to encode qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 512)
	if err != nil {
		return 0, fmt.Errorf("failed to generate qr code: %w", err)
	}

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions("qr", margin, margin, qrSize, qrSize, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	textX := margin + qrSize + 8

	pdf.SetFont("Helvetica", "B", titleFontSize)
	pdf.Text(textX, margin+6, "CLASS ATTENDANCE")

	pdf.SetFont("Helvetica", "B", headerFontSize)
	pdf.Text(textX, margin+14, cfg.ClassName)

	pdf.SetFont("Helvetica", "", normalFontSize)
	pdf.Text(textX, margin+20, FormatDateDisplay(cfg.Date))
	pdf.Text(textX, margin+26, "Instructor: "+cfg.Teacher)

	infoY := margin + 26.0
	if cfg.Location != "" {
		infoY += 5
		pdf.Text(textX, infoY, "Location: "+cfg.Location)
	}

	pdf.SetFont("Helvetica", "", smallFontSize)
	pdf.Text(margin+contentWidth-25, margin+qrSize+2, "ID: "+cfg.EventID)

	return margin + qrSize + 8, nil
}

// drawBlankGrid draws tables of four seats each. Tables never split
// across pages.
func drawBlankGrid(pdf *gofpdf.Fpdf, cfg Config, startY, contentWidth, mailingHeight float64) {
	numTables := (cfg.BlankRows + 3) / 4
	tableHeight := tableSeatRowHeight * 4
	tableColWidth := 22.0

	y := startY
	limit := pageHeight - margin - mailingHeight - 5

	for table := 1; table <= numTables; table++ {
		if y+tableHeight > limit {
			pdf.AddPage()
			y = margin
			limit = pageHeight - margin
		}

		for seatIdx, seat := range seats {
			row := (table-1)*4 + seatIdx
			if row >= cfg.BlankRows {
				break
			}

			textY := y + tableSeatRowHeight/2 + 1.5
			pdf.SetFont("Helvetica", "", normalFontSize)
			if seatIdx == 0 {
				pdf.Text(margin+2, textY, fmt.Sprintf("Table %d", table))
			}
			pdf.Text(margin+tableColWidth+2, textY, seat)

			pdf.SetDrawColor(179, 179, 179)
			pdf.SetLineWidth(0.3)
			lineStart := margin + tableColWidth
			if seatIdx == 3 {
				lineStart = margin // full-width table separator
			}
			pdf.Line(lineStart, y+tableSeatRowHeight, margin+contentWidth, y+tableSeatRowHeight)

			y += tableSeatRowHeight
		}
	}
}

// drawRosterGrid draws a checkbox row per known name plus eight blank
// rows, shrinking row height to fit one page.
func drawRosterGrid(pdf *gofpdf.Fpdf, cfg Config, startY, contentWidth, mailingHeight float64) {
	const headerRowHeight = 6.0
	const extraBlankRows = 8

	nameWidth := contentWidth * nameColRatio
	tableWidth := contentWidth * tableColRatio
	colTableX := margin + nameWidth
	colSeatX := colTableX + tableWidth

	available := pageHeight - startY - margin - mailingHeight - 5 - headerRowHeight
	totalRows := len(cfg.Roster) + extraBlankRows
	rowHeight := available / float64(totalRows)
	if rowHeight > rosterRowHeight {
		rowHeight = rosterRowHeight
	}

	y := startY

	pdf.SetFont("Helvetica", "B", normalFontSize)
	pdf.Text(margin+2, y+headerRowHeight-1.5, "NAME")
	pdf.SetFont("Helvetica", "B", smallFontSize)
	pdf.Text(colTableX+2, y+headerRowHeight-1.5, "TABLE")
	pdf.Text(colSeatX+2, y+headerRowHeight-1.5, "SEAT")
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(margin, y+headerRowHeight, margin+contentWidth, y+headerRowHeight)
	y += headerRowHeight

	drawRow := func(name string) {
		textY := y + rowHeight - 1.5
		if name != "" {
			pdf.SetDrawColor(0, 0, 0)
			pdf.SetLineWidth(0.4)
			pdf.Rect(margin+1, textY-3, 3, 3, "D")
			pdf.SetFont("Helvetica", "", normalFontSize)
			pdf.Text(margin+6, textY, name)
		} else {
			pdf.SetDrawColor(0, 0, 0)
			pdf.SetLineWidth(0.3)
			pdf.Line(margin+2, textY+0.5, colTableX-2, textY+0.5)
		}

		pdf.Line(colTableX+5, textY+0.5, colTableX+tableWidth-3, textY+0.5)
		pdf.SetFont("Helvetica", "", smallFontSize)
		pdf.Text(colSeatX+3, textY, "N  S  E  W")

		pdf.SetDrawColor(204, 204, 204)
		pdf.SetLineWidth(0.3)
		pdf.Line(margin, y+rowHeight, margin+contentWidth, y+rowHeight)
		y += rowHeight
	}

	for _, name := range cfg.Roster {
		drawRow(name)
	}
	for i := 0; i < extraBlankRows; i++ {
		drawRow("")
	}
}

func drawMailingSection(pdf *gofpdf.Fpdf, rows int, contentWidth float64) {
	if rows <= 0 {
		rows = 4
	}
	yTop := pageHeight - margin - mailingSectionHeight

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(margin, yTop, margin+contentWidth, yTop)

	pdf.SetFont("Helvetica", "B", normalFontSize)
	pdf.Text(margin+contentWidth/2-20, yTop+6, "JOIN MY MAILING LIST")

	const headerSpace = 10.0
	rowHeight := (mailingSectionHeight - headerSpace - 3) / float64(rows)
	y := yTop + headerSpace

	pdf.SetFont("Helvetica", "", smallFontSize)
	pdf.SetLineWidth(0.3)
	for i := 0; i < rows; i++ {
		pdf.Text(margin+2, y, "Name:")
		pdf.Line(margin+15, y+0.5, margin+contentWidth*0.45, y+0.5)

		pdf.Text(margin+contentWidth*0.48, y, "Email:")
		pdf.Line(margin+contentWidth*0.48+12, y+0.5, margin+contentWidth-2, y+0.5)

		y += rowHeight
	}
}
