package reporting

import (
	"fmt"
	"strings"
	"time"
)

type LineItem struct {
	Description string
	Cost        float64
}

// Invoice is the printable view of a bill.
type Invoice struct {
	ID       string
	Doctor   Party
	Patient  Party
	IssuedAt time.Time
	Status   string
	Items    []LineItem
	Total    float64
}

func InvoiceFileName(id string) string {
	return "bill_" + id + ".pdf"
}

// InvoicePDF renders a billing statement.
func InvoicePDF(inv Invoice) ([]byte, error) {
	d := newDocument("BILLING STATEMENT", "This bill was generated electronically and is valid without a signature.")
	pdf := d.pdf

	d.authorBlock(inv.Doctor, inv.IssuedAt, "Invoice", inv.ID)

	y := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, 7, d.tr("PATIENT: "+inv.Patient.Name), "", 0, "L", false, 0, "")
	pdf.SetY(y)
	pdf.CellFormat(0, 7, "STATUS: "+strings.ToUpper(inv.Status), "", 1, "R", false, 0, "")

	d.section("SERVICES")
	if len(inv.Items) == 0 {
		d.muted("No services billed.")
	} else {
		widths := []float64{130, 50}
		d.tableHeader(widths, "Service Description", "Cost (Rs)")
		for i, item := range inv.Items {
			d.tableRow(widths, item.Description, fmt.Sprintf("Rs. %.2f", item.Cost))
			if i < len(inv.Items)-1 {
				d.dashedRule()
				pdf.Ln(1)
			}
		}
		pdf.Ln(2)
		d.rule(204, 204, 204, 0.3)
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(51, 51, 51)
		pdf.CellFormat(0, 7, fmt.Sprintf("TOTAL: Rs. %.2f", inv.Total), "", 1, "R", false, 0, "")
	}

	d.section("PAYMENT INFORMATION")
	d.body("Please make payment within 30 days of receipt.")
	d.body("Payment Methods: Bank Transfer, Credit Card, Cash")

	return d.bytes()
}
