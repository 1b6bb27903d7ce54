package report

import (
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"
)

// chartGrid maps chart values (x, y) onto a rectangle of the PDF page.
// The origin is the bottom-left corner of the rectangle.
type chartGrid struct {
	*gofpdf.Fpdf

	OffsetU, OffsetV float64 // top-left corner of the plot area, in mm
	W, H             float64

	MinX, MinY, MaxX, MaxY float64

	YGridlineEvery float64
	YTickFmt       string
}

func (g chartGrid) U(x float64) float64 {
	if g.MaxX == g.MinX {
		return g.OffsetU + g.W/2
	}
	return g.OffsetU + (x-g.MinX)/(g.MaxX-g.MinX)*g.W
}

func (g chartGrid) V(y float64) float64 {
	if g.MaxY == g.MinY {
		return g.OffsetV + g.H/2
	}
	return g.OffsetV + g.H - (y-g.MinY)/(g.MaxY-g.MinY)*g.H
}

// Line draws between two points given in chart space.
func (g chartGrid) Line(x1, y1, x2, y2 float64) {
	g.Fpdf.Line(g.U(x1), g.V(y1), g.U(x2), g.V(y2))
}

func (g chartGrid) DrawAxes() {
	g.SetLineWidth(0.3)
	g.SetDrawColor(0x40, 0x40, 0x40)
	g.Fpdf.Line(g.OffsetU, g.OffsetV, g.OffsetU, g.OffsetV+g.H)
	g.Fpdf.Line(g.OffsetU, g.OffsetV+g.H, g.OffsetU+g.W, g.OffsetV+g.H)
}

// DrawGridlines draws horizontal gridlines with their tick labels to the
// left of the plot area.
func (g chartGrid) DrawGridlines() {
	if g.YGridlineEvery <= 0 {
		return
	}
	g.SetFont("Arial", "", 8)
	g.SetLineWidth(0.1)
	g.SetDrawColor(0xe0, 0xe0, 0xe0)
	g.SetTextColor(0, 0, 0)
	for y := g.MinY; y <= g.MaxY+g.YGridlineEvery/1000; y += g.YGridlineEvery {
		v := g.V(y)
		g.Fpdf.Line(g.OffsetU, v, g.OffsetU+g.W, v)
		if g.YTickFmt != "" {
			g.SetXY(g.OffsetU-20, v-2)
			g.CellFormat(18, 4, fmt.Sprintf(g.YTickFmt, y), "", 0, "R", false, 0, "")
		}
	}
}

// niceStep picks a gridline spacing of 1, 2 or 5 times a power of ten that
// splits span into roughly target intervals.
func niceStep(span float64, target int) float64 {
	if span <= 0 || target <= 0 {
		return 1
	}
	raw := span / float64(target)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

// niceRange widens [lo, hi] outward to multiples of step.
func niceRange(lo, hi float64, target int) (float64, float64, float64) {
	if hi <= lo {
		hi = lo + 1
	}
	step := niceStep(hi-lo, target)
	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}
