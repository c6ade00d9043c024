// Package pdf renders printable documents with fpdf.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

type Patient struct {
	Name      string
	Document  string
	BirthDate string
	Gender    string
	Phone     string
}

type Measure struct {
	Name  string
	Value string
	Unit  string
}

// Visit is one attention as printed.
type Visit struct {
	Date         string
	Time         string
	Service      string
	Professional string
	Type         string
	Status       string
	Motive       string
	Diagnosis    string
	Observations string
	CareNote     string
	Treatment    string
	Measures     []Measure
}

type History struct {
	Clinic      string
	GeneratedAt time.Time
	Patient     Patient
	Current     Visit
	Previous    []Visit
}

// RenderHistory lays out the clinical history: patient block, the current
// attention in full, then earlier attentions newest first.
func RenderHistory(h History) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	// core fonts are cp1252; accented names need translating
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont("Helvetica", "I", 8)
		doc.CellFormat(0, 5, tr(fmt.Sprintf("Generado %s - página %d", h.GeneratedAt.Format("02/01/2006 15:04"), doc.PageNo())),
			"", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 14)
	title := "Historia clínica"
	if h.Clinic != "" {
		title = h.Clinic + " - " + title
	}
	doc.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")
	doc.Ln(2)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 7, tr("Paciente"), "B", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	field(doc, tr, "Nombre", h.Patient.Name)
	field(doc, tr, "Documento", h.Patient.Document)
	field(doc, tr, "Nacimiento", h.Patient.BirthDate)
	field(doc, tr, "Género", h.Patient.Gender)
	field(doc, tr, "Teléfono", h.Patient.Phone)
	doc.Ln(3)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 7, tr("Atención actual"), "B", 1, "L", false, 0, "")
	visit(doc, tr, h.Current)

	if len(h.Previous) > 0 {
		doc.Ln(3)
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(0, 7, tr("Atenciones anteriores"), "B", 1, "L", false, 0, "")
		for _, v := range h.Previous {
			visit(doc, tr, v)
			doc.Ln(1)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render history pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func field(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(35, 6, tr(label+":"), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 6, tr(value), "", "L", false)
}

func visit(doc *fpdf.Fpdf, tr func(string) string, v Visit) {
	doc.SetFont("Helvetica", "B", 10)
	header := fmt.Sprintf("%s %s  %s - %s", v.Date, v.Time, v.Service, v.Professional)
	doc.CellFormat(0, 6, tr(header), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	field(doc, tr, "Tipo", v.Type)
	field(doc, tr, "Estado", v.Status)
	field(doc, tr, "Motivo", v.Motive)
	field(doc, tr, "Diagnóstico", v.Diagnosis)
	field(doc, tr, "Observaciones", v.Observations)
	field(doc, tr, "Nota", v.CareNote)
	field(doc, tr, "Tratamiento", v.Treatment)
	if len(v.Measures) == 0 {
		return
	}
	parts := make([]string, 0, len(v.Measures))
	for _, m := range v.Measures {
		parts = append(parts, strings.TrimSpace(m.Name+" "+m.Value+" "+m.Unit))
	}
	field(doc, tr, "Signos", strings.Join(parts, ", "))
}
