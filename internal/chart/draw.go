package chart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	totalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	barPalette  = []string{"39", "208", "42", "201", "226", "196", "99", "51"}
	minChartW   = 20
	legendWidth = 28
)

func barStyle(i int) lipgloss.Style {
	c := lipgloss.Color(barPalette[i%len(barPalette)])
	return lipgloss.NewStyle().Foreground(c).Background(c)
}

type bar struct {
	label string
	value float64
}

func bars(snap aggregate.Snapshot) []bar {
	if snap.Mode == aggregate.ModeCategory {
		out := make([]bar, len(snap.Categories))
		for i, c := range snap.Categories {
			out[i] = bar{label: c.Label, value: float64(c.Count)}
		}
		return out
	}
	out := make([]bar, len(snap.Points))
	for i, p := range snap.Points {
		out[i] = bar{label: p.X, value: p.Y}
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame renders the full snapshot as a bar chart with a legend, sized to
// width x height terminal cells.
func Frame(snap aggregate.Snapshot, labels Labels, width, height int) string {
	labels = labels.withDefaults()
	title := titleStyle.Render(labels.Title)
	axes := axisStyle.Render(fmt.Sprintf("x: %s   y: %s", labels.XLabel, labels.YLabel))

	data := bars(snap)
	if len(data) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, emptyStyle.Render("waiting for records..."), axes)
	}

	chartHeight := max(height-3, 4)
	chartWidth := max(width-legendWidth-2, minChartW)

	// One cell per bar plus a gap; keep the newest bars when space runs out.
	maxBars := max(chartWidth/2, 1)
	start := 0
	if len(data) > maxBars {
		start = len(data) - maxBars
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for i := start; i < len(data); i++ {
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: data[i].label, Value: max(data[i].value, 0), Style: barStyle(i)},
			},
		})
	}
	bc.Draw()

	legendLines := make([]string, 0, chartHeight)
	for i := start; i < len(data) && len(legendLines) < chartHeight-2; i++ {
		label := truncate(data[i].label, legendWidth-10)
		line := fmt.Sprintf("%-*s %8s", legendWidth-10, label, formatValue(data[i].value))
		legendLines = append(legendLines, lipgloss.NewStyle().Foreground(lipgloss.Color(barPalette[i%len(barPalette)])).Render(line))
	}
	legendLines = append(legendLines,
		totalStyle.Render(strings.Repeat("─", legendWidth-2)),
		totalStyle.Render(fmt.Sprintf("%-*s %8s", legendWidth-10, "TOTAL", formatValue(snap.Total))),
	)

	chartLines := strings.Split(bc.View(), "\n")
	rows := make([]string, 0, chartHeight)
	for i := 0; i < chartHeight; i++ {
		chartLine, legendLine := "", ""
		if i < len(chartLines) {
			chartLine = chartLines[i]
		}
		if i < len(legendLines) {
			legendLine = legendLines[i]
		}
		if w := lipgloss.Width(chartLine); w < chartWidth {
			chartLine += strings.Repeat(" ", chartWidth-w)
		}
		rows = append(rows, chartLine+"  "+legendLine)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), axes)
}

// Summary renders the snapshot as a single uncolored line.
func Summary(snap aggregate.Snapshot, labels Labels) string {
	labels = labels.withDefaults()
	data := bars(snap)
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = b.label + "=" + formatValue(b.value)
	}
	return fmt.Sprintf("[%d] %s (%s / %s): %s", snap.Seq, labels.Title, labels.XLabel, labels.YLabel, strings.Join(parts, " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
