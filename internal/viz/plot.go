package viz

import (
	"github.com/guptarohit/asciigraph"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan,
	asciigraph.Green,
	asciigraph.Yellow,
	asciigraph.Red,
	asciigraph.Blue,
	asciigraph.Magenta,
}

// Plot draws one series.
func Plot(series []float64, caption string, width, height int) string {
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotMany overlays several series with a legend. Nil series are skipped.
func PlotMany(series [][]float64, legends []string, caption string, width, height int) string {
	var (
		data   [][]float64
		names  []string
		colors []asciigraph.AnsiColor
	)
	for i, s := range series {
		if len(s) == 0 {
			continue
		}
		data = append(data, s)
		if i < len(legends) {
			names = append(names, legends[i])
		}
		colors = append(colors, seriesColors[len(colors)%len(seriesColors)])
	}
	if len(data) == 0 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	}
	if len(names) == len(data) {
		opts = append(opts, asciigraph.SeriesLegends(names...))
	}
	return asciigraph.PlotMany(data, opts...)
}
