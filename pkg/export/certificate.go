package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateStep is one line of the approval history printed on a certificate.
type CertificateStep struct {
	Role      string
	Status    string
	Timestamp *time.Time
}

// Document titles.
const (
	TitleApprovalCertificate = "LEAVE APPROVAL CERTIFICATE"
	TitleAuditRecord         = "LEAVE REQUEST AUDIT RECORD"
)

// Certificate holds the content of a leave approval certificate or audit record.
type Certificate struct {
	// Title defaults to TitleApprovalCertificate.
	Title string
	// Watermark is printed diagonally across the page when set.
	Watermark    string
	Status       string
	Organization string
	RequestID    string
	Employee     string
	Role         string
	StartDate    time.Time
	EndDate      time.Time
	LeaveDays    int
	Reliever     string
	SubmittedAt  time.Time
	Reason       string
	Steps        []CertificateStep
}

// CertificateRenderer lays out approval certificates on A4 portrait pages.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render produces the certificate PDF bytes.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.RequestID == "" {
		return nil, fmt.Errorf("certificate requires a request id")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(15, 23, 42)
	pdf.Rect(0, 0, pageWidth, 40, "F")
	pdf.SetFillColor(142, 138, 31)
	pdf.Rect(0, 38, pageWidth, 2, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(0, 14)
	pdf.CellFormat(pageWidth, 8, strings.ToUpper(cert.Organization), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(pageWidth, 6, "LEAVE MANAGEMENT SYSTEM", "", 1, "C", false, 0, "")
	title := cert.Title
	if title == "" {
		title = TitleApprovalCertificate
	}
	pdf.CellFormat(pageWidth, 5, title, "", 1, "C", false, 0, "")

	if cert.Watermark != "" {
		pdf.SetAlpha(0.1, "Normal")
		pdf.SetTextColor(120, 120, 120)
		pdf.SetFont("Helvetica", "B", 60)
		pdf.TransformBegin()
		pdf.TransformRotate(45, pageWidth/2, 150)
		pdf.Text(pageWidth/2-pdf.GetStringWidth(cert.Watermark)/2, 150, cert.Watermark)
		pdf.TransformEnd()
		pdf.SetAlpha(1, "Normal")
	}

	pdf.SetTextColor(50, 50, 50)
	section(pdf, "REQUEST DETAILS", 55, 70)

	details := [][2]string{
		{"Request ID:", cert.RequestID},
		{"Employee Name:", cert.Employee},
		{"Role:", cert.Role},
		{"Start Date:", formatDate(cert.StartDate)},
		{"End Date:", formatDate(cert.EndDate)},
		{"Total Days:", dayLabel(cert.LeaveDays)},
		{"Reliever:", cert.Reliever},
		{"Submission Date:", formatDate(cert.SubmittedAt)},
	}
	if cert.Status != "" {
		details = append(details, [2]string{"Status:", cert.Status})
	}
	y := 65.0
	for _, d := range details {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Text(15, y, d[0])
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(60, y, d[1])
		y += 8
	}

	y += 5
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(15, y, "REASON FOR LEAVE")
	y += 2
	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetXY(15, y)
	pdf.MultiCell(pageWidth-30, 5, `"`+cert.Reason+`"`, "", "L", false)
	y = pdf.GetY() + 10

	section(pdf, "APPROVAL HISTORY & VERIFICATION", y, 100)
	y += 10
	for i, step := range cert.Steps {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(50, 50, 50)
		pdf.Text(15, y, fmt.Sprintf("%d. %s", i+1, step.Role))

		pdf.SetFont("Helvetica", "", 9)
		switch step.Status {
		case "approved":
			pdf.SetTextColor(0, 100, 0)
		case "rejected":
			pdf.SetTextColor(200, 0, 0)
		default:
			pdf.SetTextColor(150, 150, 150)
		}
		pdf.Text(70, y, strings.ToUpper(step.Status))

		pdf.SetTextColor(100, 100, 100)
		stamp := "N/A"
		if step.Timestamp != nil {
			stamp = step.Timestamp.Format("02/01/2006 15:04")
		}
		pdf.Text(110, y, stamp)
		y += 8
	}

	pdf.SetTextColor(150, 150, 150)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(0, 256)
	pdf.CellFormat(pageWidth, 5, "This is a system-generated document and does not require a physical signature.", "", 1, "C", false, 0, "")
	pdf.SetTextColor(142, 138, 31)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pageWidth, 8, "[ DIGITAL SIGNATURE SECURED ]", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string, y, underline float64) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(50, 50, 50)
	pdf.Text(15, y, title)
	pdf.SetDrawColor(142, 138, 31)
	pdf.Line(15, y+2, underline, y+2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("02/01/2006")
}

func dayLabel(days int) string {
	if days == 1 {
		return "1 Day"
	}
	return fmt.Sprintf("%d Days", days)
}
