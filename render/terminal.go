package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/stsysd/koyomi/calendar"
)

// cssColors maps the CSS color names used by the default settings to ANSI colors.
var cssColors = map[string]string{
	"black":     "0",
	"red":       "1",
	"green":     "2",
	"yellow":    "3",
	"blue":      "4",
	"magenta":   "5",
	"cyan":      "6",
	"white":     "15",
	"grey":      "8",
	"gray":      "8",
	"darkgrey":  "8",
	"lightgrey": "7",
}

func termColor(css string) lipgloss.TerminalColor {
	css = strings.ToLower(strings.TrimSpace(css))
	if strings.HasPrefix(css, "#") {
		return lipgloss.Color(css)
	}
	if c, ok := cssColors[css]; ok {
		return lipgloss.Color(c)
	}
	return lipgloss.NoColor{}
}

// Terminal is a calendar.Surface that renders a text preview of the frame.
// Each day shows its number followed by one block per visible bar.
type Terminal struct {
	// PerRow is the number of months placed side by side.
	PerRow int

	frame    *calendar.Frame
	settings calendar.Settings
	legend   calendar.LegendState
	fills    map[string]calendar.FillState
}

// NewTerminal creates a terminal surface.
func NewTerminal(perRow int) *Terminal {
	return &Terminal{PerRow: max(1, perRow), fills: make(map[string]calendar.FillState)}
}

// Draw implements calendar.Surface.
func (t *Terminal) Draw(f *calendar.Frame, st calendar.Settings, legend calendar.LegendState) {
	t.frame = f
	t.settings = st
	t.legend = legend
	t.fills = make(map[string]calendar.FillState)
}

// PaintCell implements calendar.Painter.
func (t *Terminal) PaintCell(cellID string, state calendar.FillState) {
	t.fills[cellID] = state
}

// PaintLegend implements calendar.LegendPainter.
func (t *Terminal) PaintLegend(st calendar.LegendState) {
	t.legend = st
}

const termCellWidth = 5

// String renders the preview. It returns an empty string before the first Draw.
func (t *Terminal) String() string {
	if t.frame == nil {
		return ""
	}

	var blocks []string
	if legend := t.renderLegend(); legend != "" {
		blocks = append(blocks, legend)
	}

	months := t.frame.Months
	for i := 0; i < len(months); i += t.PerRow {
		end := min(i+t.PerRow, len(months))
		row := make([]string, 0, end-i)
		for _, g := range months[i:end] {
			row = append(row, lipgloss.NewStyle().MarginRight(2).Render(t.renderMonth(g)))
		}
		blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (t *Terminal) renderLegend() string {
	ls := t.settings.Legend
	if !ls.Show || len(t.frame.Dataset.Points) == 0 || len(t.frame.Legend) == 0 {
		return ""
	}
	label := lipgloss.NewStyle().Foreground(termColor(ls.LabelColor))

	var parts []string
	if ls.TitleShow && ls.TitleName != "" {
		parts = append(parts, label.Bold(true).Render(ls.TitleName))
	}
	for _, m := range t.frame.Legend {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(m.Color))
		// 凡例で選ばれていない項目は薄く表示する
		if t.legend.Item(m.Name) < 1 {
			dot = dot.Faint(true)
		}
		parts = append(parts, dot.Render("●")+" "+label.Render(m.Name))
	}
	return strings.Join(parts, "  ")
}

func (t *Terminal) renderMonth(g calendar.MonthGrid) string {
	c := t.settings.Calendar
	width := termCellWidth * 7

	header := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Background(termColor(c.HeaderColor)).
		Foreground(termColor(c.HeaderTitleColor)).
		Render(g.Title())

	weekday := lipgloss.NewStyle().Width(termCellWidth).Foreground(termColor(c.WeekDayLabelsColor))
	labels := make([]string, 0, 7)
	for _, l := range calendar.WeekdayLabels(c.FirstWeekday()) {
		labels = append(labels, weekday.Render(l))
	}

	lines := []string{header, lipgloss.JoinHorizontal(lipgloss.Top, labels...)}
	for row := range g.Rows {
		cells := make([]string, 0, 7)
		for _, cell := range g.Cells[row*7 : row*7+7] {
			cells = append(cells, t.renderCell(cell))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (t *Terminal) renderCell(cell calendar.DayCell) string {
	style := lipgloss.NewStyle().Width(termCellWidth)
	if !cell.InRange {
		return style.Render("")
	}

	day := lipgloss.NewStyle().Foreground(termColor(t.settings.Calendar.DayLabelsColor))
	if t.fills[cell.ID] == calendar.FillSelected {
		day = day.Reverse(true)
	}
	text := day.Render(fmt.Sprintf("%2d", cell.DayOfMonth))

	if stack, ok := t.frame.Stack(cell.ID); ok {
		bars := stack.VisibleSegments()
		// 上の段から最大2つまで表示する
		for i := len(bars) - 1; i >= 0 && i >= len(bars)-2; i-- {
			seg := bars[i]
			bar := lipgloss.NewStyle().Foreground(lipgloss.Color(seg.Point.Color))
			if t.legend.Metric(seg.Point.Metric) < 1 {
				bar = bar.Faint(true)
			}
			text += bar.Render("▮")
		}
	}
	return style.Render(text)
}
