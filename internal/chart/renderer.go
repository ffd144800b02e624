// Package chart renders calibration results as PNG charts and terminal sparklines
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/hrt-tracker/internal/calibration"
	"github.com/mrcode/hrt-tracker/internal/models"
)

// ErrNoData is returned when a series has nothing to draw
var ErrNoData = errors.New("nothing to draw")

// Layout constants
const (
	defaultWidth  = 900
	defaultHeight = 500
	marginLeft    = 72
	marginRight   = 24
	marginTop     = 36
	marginBottom  = 48
	pointRadius   = 4
	yTicks        = 5
)

// Point is a lab measurement placed on the chart
type Point struct {
	TimeH    float64
	ConcPGmL float64
	Outcome  calibration.Outcome
}

// Series is the data one chart shows
type Series struct {
	Raw        *models.PredictedCurve // Uncalibrated combined curve
	Calibrated *models.PredictedCurve
	Points     []Point
}

// SeriesFromReport builds the chart series of a calibration run
func SeriesFromReport(report *calibration.Report) Series {
	s := Series{
		Raw:        report.Combined(nil),
		Calibrated: report.Combined(report.Factors),
	}
	for _, step := range report.Steps {
		s.Points = append(s.Points, Point{
			TimeH:    step.Measurement.TimeH,
			ConcPGmL: step.Measurement.ConcPGmL,
			Outcome:  step.Outcome,
		})
	}
	return s
}

// Renderer draws series using the chart settings
type Renderer struct {
	settings *models.Settings
}

// NewRenderer creates a renderer
func NewRenderer(settings *models.Settings) *Renderer {
	return &Renderer{settings: settings}
}

// Render draws the series into an image
func (r *Renderer) Render(s Series) (image.Image, error) {
	settings := r.settings.Clone()
	width, height := settings.ChartWidth, settings.ChartHeight
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}

	f, ok := newFrame(s, settings, width, height)
	if !ok {
		return nil, ErrNoData
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	hasFont := loadFont(dc, 13) == nil

	if settings.ChartShowTarget && settings.TargetHigh > settings.TargetLow {
		setHexColor(dc, settings.ChartColorCalibrated, 0.12)
		top := f.y(math.Min(settings.TargetHigh, f.cMax))
		dc.DrawRectangle(f.x0, top, f.x1-f.x0, f.y(settings.TargetLow)-top)
		dc.Fill()
	}

	r.drawAxes(dc, f, settings, hasFont)

	if settings.ChartShowRaw && s.Raw.Len() > 0 {
		setHexColor(dc, settings.ChartColorRaw, 1)
		dc.SetLineWidth(1.5)
		dc.SetDash(6, 4)
		strokeCurve(dc, f, s.Raw)
		dc.SetDash()
	}

	if s.Calibrated.Len() > 0 {
		setHexColor(dc, settings.ChartColorCalibrated, 1)
		dc.SetLineWidth(2.5)
		strokeCurve(dc, f, s.Calibrated)
	}

	for _, p := range s.Points {
		x, y := f.x(p.TimeH), f.y(math.Min(p.ConcPGmL, f.cMax))
		switch p.Outcome {
		case calibration.OutcomeOutlier:
			setHexColor(dc, settings.ChartColorOutlier, 1)
			dc.DrawCircle(x, y, pointRadius)
			dc.Fill()
		case calibration.OutcomeLowSignal:
			setHexColor(dc, settings.ChartColorRaw, 1)
			dc.SetLineWidth(1.5)
			dc.DrawCircle(x, y, pointRadius)
			dc.Stroke()
		default:
			setHexColor(dc, settings.ChartColorMeasurement, 1)
			dc.DrawCircle(x, y, pointRadius)
			dc.Fill()
		}
	}

	return dc.Image(), nil
}

// RenderPNG encodes the chart as PNG to w
func (r *Renderer) RenderPNG(w io.Writer, s Series) error {
	img, err := r.Render(s)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG writes the chart to a PNG file
func (r *Renderer) SavePNG(path string, s Series) error {
	img, err := r.Render(s)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

func (r *Renderer) drawAxes(dc *gg.Context, f frame, settings *models.Settings, hasFont bool) {
	dc.SetRGB255(229, 231, 235)
	dc.SetLineWidth(1)
	for i := 0; i <= yTicks; i++ {
		c := f.cMax * float64(i) / yTicks
		y := f.y(c)
		dc.DrawLine(f.x0, y, f.x1, y)
		dc.Stroke()
		if hasFont {
			dc.SetRGB255(75, 85, 99)
			dc.DrawStringAnchored(axisValue(settings, c), f.x0-8, y, 1, 0.5)
			dc.SetRGB255(229, 231, 235)
		}
	}

	dayStep := dayTickStep(f.tMax - f.tMin)
	for d := math.Ceil(f.tMin/24/dayStep) * dayStep; d*24 <= f.tMax; d += dayStep {
		x := f.x(d * 24)
		dc.SetRGB255(229, 231, 235)
		dc.DrawLine(x, f.y0, x, f.y1)
		dc.Stroke()
		if hasFont {
			dc.SetRGB255(75, 85, 99)
			dc.DrawStringAnchored(fmt.Sprintf("d%g", d), x, f.y1+16, 0.5, 0.5)
		}
	}

	dc.SetRGB255(107, 114, 128)
	dc.SetLineWidth(1.5)
	dc.DrawLine(f.x0, f.y1, f.x1, f.y1)
	dc.DrawLine(f.x0, f.y0, f.x0, f.y1)
	dc.Stroke()

	if hasFont {
		dc.SetRGB255(31, 41, 55)
		dc.DrawStringAnchored("Estradiol ("+settings.Unit+")", f.x0, marginTop/2, 0, 0.5)
	}
}

func strokeCurve(dc *gg.Context, f frame, curve *models.PredictedCurve) {
	dc.NewSubPath()
	for i, t := range curve.TimeH {
		if t < f.tMin || t > f.tMax {
			continue
		}
		dc.LineTo(f.x(t), f.y(math.Min(curve.ConcPGmL[i], f.cMax)))
	}
	dc.Stroke()
}

// frame maps data coordinates to pixels
type frame struct {
	x0, y0, x1, y1 float64
	tMin, tMax     float64
	cMax           float64
}

func newFrame(s Series, settings *models.Settings, width, height int) (frame, bool) {
	f := frame{
		x0: marginLeft,
		y0: marginTop,
		x1: float64(width - marginRight),
		y1: float64(height - marginBottom),
	}

	tMin, tMax := math.Inf(1), math.Inf(-1)
	extend := func(t, c float64) {
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
		f.cMax = math.Max(f.cMax, c)
	}
	for _, curve := range []*models.PredictedCurve{s.Raw, s.Calibrated} {
		for i := 0; i < curve.Len(); i++ {
			extend(curve.TimeH[i], curve.ConcPGmL[i])
		}
	}
	for _, p := range s.Points {
		extend(p.TimeH, p.ConcPGmL)
	}
	if math.IsInf(tMin, 1) {
		return f, false
	}

	if settings.ChartShowTarget {
		f.cMax = math.Max(f.cMax, settings.TargetHigh)
	}
	if f.cMax <= 0 {
		f.cMax = 1
	}
	f.cMax *= 1.1
	if tMax <= tMin {
		tMax = tMin + 1
	}
	f.tMin, f.tMax = tMin, tMax
	return f, true
}

func (f frame) x(t float64) float64 {
	return f.x0 + (t-f.tMin)/(f.tMax-f.tMin)*(f.x1-f.x0)
}

func (f frame) y(c float64) float64 {
	return f.y1 - c/f.cMax*(f.y1-f.y0)
}

// dayTickStep picks a day spacing that keeps at most ~10 vertical grid lines
func dayTickStep(spanH float64) float64 {
	days := spanH / 24
	for _, step := range []float64{1, 2, 7, 14, 28} {
		if days/step <= 10 {
			return step
		}
	}
	return math.Ceil(days/10/28) * 28
}

func axisValue(settings *models.Settings, pgml float64) string {
	if settings.Unit == models.UnitPmolL {
		return fmt.Sprintf("%.0f", models.ToPmolL(pgml))
	}
	return fmt.Sprintf("%.0f", pgml)
}

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	face := truetype.NewFace(font, &truetype.Options{Size: size})
	dc.SetFontFace(face)
	return nil
}

func setHexColor(dc *gg.Context, hex string, alpha float64) {
	r, g, b := parseHexColor(hex)
	dc.SetRGBA255(int(r), int(g), int(b), int(alpha*255))
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}
