package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"flyshark/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

var ErrNoChartData = errors.New("no data to chart")

// A4 landscape plot area, in mm.
const (
	plotLeft   = 35.0
	plotTop    = 30.0
	plotWidth  = 240.0
	plotHeight = 130.0
)

func newChartPDF(title, subtitle string) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.SetXY(plotLeft, 12)
	pdf.Cell(plotWidth, 8, tr(pdfText(title)))
	if subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.SetXY(plotLeft, 19)
		pdf.Cell(plotWidth, 6, tr(pdfText(subtitle)))
	}
	return pdf, tr
}

// pdfText replaces glyphs the core PDF fonts cannot render.
func pdfText(s string) string {
	return strings.NewReplacer("→", "-", "—", "-").Replace(s)
}

// WriteMinPriceChart draws one bar per departure date at the cheapest price
// found for that date.
func WriteMinPriceChart(w io.Writer, title, currency string, points []PricePoint) error {
	if len(points) == 0 {
		return ErrNoChartData
	}
	pdf, tr := newChartPDF(title, fmt.Sprintf("Lowest price per departure date (%s)", currency))

	maxPrice := 0.0
	for _, p := range points {
		maxPrice = math.Max(maxPrice, p.Price)
	}
	_, maxY, step := niceRange(0, maxPrice*1.1, 5)

	g := chartGrid{
		Fpdf:    pdf,
		OffsetU: plotLeft, OffsetV: plotTop, W: plotWidth, H: plotHeight,
		MinX: 0, MaxX: float64(len(points)),
		MinY: 0, MaxY: maxY,
		YGridlineEvery: step,
		YTickFmt:       "%.0f",
	}
	g.DrawGridlines()

	slot := plotWidth / float64(len(points))
	barW := slot * 0.7
	pdf.SetFillColor(0x1f, 0x77, 0xb4)
	pdf.SetFont("Arial", "", 7)
	for i, p := range points {
		left := g.U(float64(i)) + (slot-barW)/2
		top := g.V(p.Price)
		pdf.Rect(left, top, barW, g.V(0)-top, "F")

		label := fmt.Sprintf("%.0f", p.Price)
		pdf.Text(left+barW/2-pdf.GetStringWidth(label)/2, top-1, label)

		date := p.Date.Format(domain.DateLayout)
		x, y := left+barW/2, plotTop+plotHeight+3
		pdf.TransformBegin()
		pdf.TransformRotate(-45, x, y)
		pdf.Text(x, y+2, tr(date))
		pdf.TransformEnd()
	}
	g.DrawAxes()

	return pdf.Output(w)
}

// WriteTrendChart draws the observed price history as a line and the
// projected trend as a dashed continuation.
func WriteTrendChart(w io.Writer, title, currency string, history, projection []PricePoint) error {
	if len(history) == 0 {
		return ErrNoChartData
	}
	subtitle := fmt.Sprintf("%d observations (%s)", len(history), currency)
	if len(projection) > 0 {
		subtitle += fmt.Sprintf(", trend projected %d days", len(projection))
	}
	pdf, tr := newChartPDF(title, subtitle)

	origin := history[0].Date
	all := append(append([]PricePoint(nil), history...), projection...)
	lo, hi := all[0].Price, all[0].Price
	maxX := 0.0
	for _, p := range all {
		lo = math.Min(lo, p.Price)
		hi = math.Max(hi, p.Price)
		maxX = math.Max(maxX, dayIndex(origin, p.Date))
	}
	if maxX == 0 {
		maxX = 1
	}
	minY, maxY, step := niceRange(math.Max(0, lo*0.9), hi*1.1, 5)

	g := chartGrid{
		Fpdf:    pdf,
		OffsetU: plotLeft, OffsetV: plotTop, W: plotWidth, H: plotHeight,
		MinX: 0, MaxX: maxX,
		MinY: minY, MaxY: maxY,
		YGridlineEvery: step,
		YTickFmt:       "%.0f",
	}
	g.DrawGridlines()

	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0x1f, 0x77, 0xb4)
	pdf.SetFillColor(0x1f, 0x77, 0xb4)
	for i, p := range history {
		x := dayIndex(origin, p.Date)
		if i > 0 {
			g.Line(dayIndex(origin, history[i-1].Date), history[i-1].Price, x, p.Price)
		}
		pdf.Circle(g.U(x), g.V(p.Price), 0.8, "F")
	}

	if len(projection) > 0 {
		pdf.SetDrawColor(0xd6, 0x27, 0x28)
		pdf.SetDashPattern([]float64{2, 2}, 0)
		prev := history[len(history)-1]
		for _, p := range projection {
			g.Line(dayIndex(origin, prev.Date), prev.Price, dayIndex(origin, p.Date), p.Price)
			prev = p
		}
		pdf.SetDashPattern([]float64{}, 0)
	}

	// Date labels at the ends and the middle of the x axis.
	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(0, 0, 0)
	for _, frac := range []float64{0, 0.5, 1} {
		x := maxX * frac
		label := origin.Add(timeDays(x)).Format(domain.DateLayout)
		u := g.U(x) - pdf.GetStringWidth(label)/2
		pdf.Text(u, plotTop+plotHeight+5, tr(label))
	}
	g.DrawAxes()

	return pdf.Output(w)
}
