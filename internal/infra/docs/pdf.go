package docs

import (
	"bytes"
	"fmt"
	"time"

	"telegram-verification-bot/internal/domain/model"

	"github.com/jung-kurt/gofpdf"
)

// renderEmploymentPDF produces a one-page employment confirmation letter on
// the organization's letterhead.
func renderEmploymentPDF(identity model.Identity) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Employment Verification", false)
	pdf.SetAuthor(identity.Organization.Name, false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Letterhead
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, identity.Organization.Name, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Office of Human Resources", "", 1, "C", false, 0, "")
	hr(pdf)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, time.Now().Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Employment Verification Letter", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	body := fmt.Sprintf(
		"To Whom It May Concern:\n\n"+
			"This letter confirms that %s (date of birth %s) is currently employed "+
			"as a full-time teacher at %s. This statement is issued at the employee's "+
			"request for the purpose of identity verification.\n\n"+
			"Should you require further information, please contact the Office of "+
			"Human Resources.",
		identity.FullName(), identity.BirthDate, identity.Organization.Name)
	pdf.MultiCell(0, 6, body, "", "L", false)
	pdf.Ln(12)

	pdf.CellFormat(0, 6, "Sincerely,", "", 1, "L", false, 0, "")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.CellFormat(0, 6, "Human Resources Department", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, identity.Organization.Name, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hr(pdf *gofpdf.Fpdf) {
	x, y := pdf.GetXY()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(left, y+1, pageW-right, y+1)
	pdf.SetXY(x, y+3)
}
