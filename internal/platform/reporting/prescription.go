package reporting

import "time"

type Medicine struct {
	Name         string
	Dosage       string
	Frequency    string
	Duration     string
	Instructions string
}

// Prescription is the printable view of a prescription.
type Prescription struct {
	ID        string
	Doctor    Party
	Patient   Party
	IssuedAt  time.Time
	Diagnosis string
	Medicines []Medicine
	Notes     string
}

func PrescriptionFileName(id string) string {
	return "prescription_" + id + ".pdf"
}

// PrescriptionPDF renders a prescription with its medicines table. The
// additional notes section is omitted when there are no notes.
func PrescriptionPDF(p Prescription) ([]byte, error) {
	d := newDocument("MEDICAL PRESCRIPTION", "This prescription was issued electronically and is valid without a signature.")
	pdf := d.pdf

	d.authorBlock(p.Doctor, p.IssuedAt, "Ref", p.ID)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, 7, d.tr("PATIENT: "+p.Patient.Name), "", 1, "L", false, 0, "")

	d.section("DIAGNOSIS")
	if p.Diagnosis == "" {
		d.muted("No diagnosis provided.")
	} else {
		d.body(p.Diagnosis)
	}

	d.section("PRESCRIBED MEDICINES")
	if len(p.Medicines) == 0 {
		d.muted("No medicines prescribed.")
	} else {
		widths := []float64{65, 40, 40, 35}
		d.tableHeader(widths, "Medicine", "Dosage", "Frequency", "Duration")
		for i, m := range p.Medicines {
			d.tableRow(widths, m.Name, m.Dosage, m.Frequency, m.Duration)
			if m.Instructions != "" {
				pdf.SetX(pageMargin + 7)
				pdf.SetFont("Helvetica", "I", 9)
				pdf.SetTextColor(102, 102, 102)
				pdf.MultiCell(0, 5, d.tr("Instructions: "+m.Instructions), "", "L", false)
				pdf.Ln(1)
			}
			if i < len(p.Medicines)-1 {
				d.dashedRule()
				pdf.Ln(1)
			}
		}
		pdf.Ln(2)
		d.rule(204, 204, 204, 0.3)
	}

	if p.Notes != "" {
		d.section("ADDITIONAL NOTES")
		d.body(p.Notes)
	}

	return d.bytes()
}
