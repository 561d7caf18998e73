package alerts

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// renderCharts draws the 4-panel overview (patterns, top source IPs,
// severity mix, confidence distribution) and returns it as a base64
// PNG. Chart failures are reported, not fatal: the caller degrades to a
// text-only summary.
func renderCharts(groups []Group) (string, error) {
	if len(groups) == 0 {
		return "", fmt.Errorf("no groups to chart")
	}

	patternPlot, err := patternChart(groups)
	if err != nil {
		return "", err
	}
	ipPlot, err := topIPChart(groups)
	if err != nil {
		return "", err
	}
	severityPlot, err := severityChart(groups)
	if err != nil {
		return "", err
	}
	confidencePlot, err := confidenceChart(groups)
	if err != nil {
		return "", err
	}

	const width, height = 10 * vg.Inch, 8 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)

	plots := [][]*plot.Plot{
		{patternPlot, ipPlot},
		{severityPlot, confidencePlot},
	}
	tiles := draw.Tiles{
		Rows: 2, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func patternChart(groups []Group) (*plot.Plot, error) {
	stats := patternBreakdown(groups)
	values := make(plotter.Values, len(stats))
	labels := make([]string, len(stats))
	for i, s := range stats {
		values[i] = float64(s.count)
		labels[i] = s.pattern
	}

	p := plot.New()
	p.Title.Text = "Alerts by pattern"
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

func topIPChart(groups []Group) (*plot.Plot, error) {
	assets := topAssets(groups, 10)
	values := make(plotter.Values, len(assets))
	labels := make([]string, len(assets))
	for i, a := range assets {
		values[i] = float64(a.count)
		labels[i] = a.ip
	}

	p := plot.New()
	p.Title.Text = "Top source IPs"
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

func severityChart(groups []Group) (*plot.Plot, error) {
	counts := map[string]int{}
	for _, g := range groups {
		counts[g.Severity] += g.AlertCount
	}
	order := []string{"INFO", "WARNING", "ERROR"}
	values := make(plotter.Values, len(order))
	for i, s := range order {
		values[i] = float64(counts[s])
	}

	p := plot.New()
	p.Title.Text = "Alerts by severity"
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	p.NominalX(order...)
	return p, nil
}

func confidenceChart(groups []Group) (*plot.Plot, error) {
	values := make(plotter.Values, len(groups))
	for i, g := range groups {
		values[i] = g.AvgProbability
	}

	p := plot.New()
	p.Title.Text = "Confidence distribution"
	p.Y.Min, p.Y.Max = 0, 1
	box, err := plotter.NewBoxPlot(vg.Points(30), 0, values)
	if err != nil {
		return nil, err
	}
	p.Add(box)
	p.NominalX("ml_probability")
	return p, nil
}
