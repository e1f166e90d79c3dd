package monitoring

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// NormPlotter records residual norms over simulated time and renders them
// as a line chart after a run.
type NormPlotter struct {
	mu      sync.Mutex
	title   string
	blocks  []string
	samples []normSample
}

type normSample struct {
	time   float64
	total  float64
	blocks []float64
}

// NewNormPlotter returns a plotter tracking the named blocks in order.
func NewNormPlotter(title string, blocks []string) *NormPlotter {
	return &NormPlotter{title: title, blocks: append([]string(nil), blocks...)}
}

// Sample records the total residual norm and per-block norms at time t.
// Blocks missing from norms are recorded as zero.
func (p *NormPlotter) Sample(t, total float64, norms map[string]float64) {
	s := normSample{time: t, total: total, blocks: make([]float64, len(p.blocks))}
	for i, name := range p.blocks {
		s.blocks[i] = norms[name]
	}
	p.mu.Lock()
	p.samples = append(p.samples, s)
	p.mu.Unlock()
}

// Len is the number of recorded samples.
func (p *NormPlotter) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

// Save renders the recorded samples to path. The format follows the file
// extension (png, svg, pdf).
func (p *NormPlotter) Save(path string) error {
	p.mu.Lock()
	samples := append([]normSample(nil), p.samples...)
	p.mu.Unlock()
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	pl := plot.New()
	pl.Title.Text = p.title
	pl.X.Label.Text = "Time (s)"
	pl.Y.Label.Text = "Residual norm"

	totalPts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		totalPts[i] = plotter.XY{X: s.time, Y: s.total}
	}
	totalLine, err := plotter.NewLine(totalPts)
	if err != nil {
		return err
	}
	totalLine.Color = color.Black
	totalLine.Width = vg.Points(2)
	pl.Add(totalLine)
	pl.Legend.Add("total", totalLine)

	colors := generateColors(len(p.blocks))
	for b, name := range p.blocks {
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i] = plotter.XY{X: s.time, Y: s.blocks[b]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[b]
		line.Width = vg.Points(1)
		pl.Add(line)
		pl.Legend.Add(name, line)
	}

	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	if err := pl.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// generateColors returns n distinct colors spread around the hue circle.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		h := float64(i) / math.Max(1, float64(n))
		r, g, b := hueToRGB(h)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hueToRGB(h float64) (uint8, uint8, uint8) {
	channel := func(offset float64) uint8 {
		v := math.Abs(math.Mod(h*6+offset, 6)-3) - 1
		v = math.Min(1, math.Max(0, v))
		return uint8(40 + 180*v)
	}
	return channel(0), channel(4), channel(2)
}
