// Package render draws calendar frames as SVG documents or terminal text.
package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stsysd/koyomi/calendar"
)

// Options configures SVG rendering.
type Options struct {
	FontFamily   string // font family for labels
	DefaultFill  string // fill of an unselected day cell
	SelectedFill string // fill of a selected day cell
	MonthPadding int    // space around each month (px)
}

// DefaultOptions returns the options used when nil is passed to NewSVG.
func DefaultOptions() *Options {
	return &Options{
		FontFamily:   "helvetica,arial,sans-serif",
		DefaultFill:  "white",
		SelectedFill: "darkgrey",
		MonthPadding: 15,
	}
}

// SVG is a calendar.Surface that keeps the last drawn frame and renders it on demand.
type SVG struct {
	opts     *Options
	frame    *calendar.Frame
	settings calendar.Settings
	legend   calendar.LegendState
	fills    map[string]calendar.FillState
}

// NewSVG creates an SVG surface.
func NewSVG(opts *Options) *SVG {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &SVG{opts: opts, fills: make(map[string]calendar.FillState)}
}

// Draw implements calendar.Surface.
func (s *SVG) Draw(f *calendar.Frame, st calendar.Settings, legend calendar.LegendState) {
	s.frame = f
	s.settings = st
	s.legend = legend
	s.fills = make(map[string]calendar.FillState)
}

// PaintCell implements calendar.Painter.
func (s *SVG) PaintCell(cellID string, state calendar.FillState) {
	s.fills[cellID] = state
}

// PaintLegend implements calendar.LegendPainter.
func (s *SVG) PaintLegend(st calendar.LegendState) {
	s.legend = st
}

// WriteTo writes the SVG document to w.
func (s *SVG) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

// layout holds the computed placement of months.
type layout struct {
	cellSize     float64
	boxWidth     float64
	boxHeight    float64
	perRow       int
	legendHeight float64
}

func (s *SVG) layout() layout {
	f := s.frame
	size := f.Geometry.CellSize
	pad := float64(s.opts.MonthPadding)
	l := layout{
		cellSize:  size,
		boxWidth:  f.Geometry.MonthWidth() + pad,
		boxHeight: f.Geometry.MonthHeight(6) + pad,
	}

	// ビューポートの幅に収まるだけ横に並べる
	l.perRow = 4
	if f.Viewport.Width > 0 {
		l.perRow = max(1, int(f.Viewport.Width/l.boxWidth))
	}
	if s.legendShown() {
		l.legendHeight = float64(s.settings.Legend.LabelFontSize) * 2.5
	}
	return l
}

func (s *SVG) legendShown() bool {
	return s.settings.Legend.Show && len(s.frame.Dataset.Points) > 0 && len(s.frame.Legend) > 0
}

// String renders the SVG document. It returns an empty string before the first Draw.
func (s *SVG) String() string {
	if s.frame == nil {
		return ""
	}
	f := s.frame
	l := s.layout()

	rows := (len(f.Months) + l.perRow - 1) / l.perRow
	width := l.boxWidth * float64(min(l.perRow, max(1, len(f.Months))))
	height := l.legendHeight + l.boxHeight*float64(max(1, rows))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg width="%s" height="%s" xmlns="http://www.w3.org/2000/svg">`+"\n", num(width), num(height)))
	sb.WriteString(fmt.Sprintf(`  <style>text{font-family:%s}</style>`+"\n", attr(s.opts.FontFamily)))

	if s.legendShown() {
		s.writeLegend(&sb, width)
	}

	for i, g := range f.Months {
		x := l.boxWidth * float64(i%l.perRow)
		y := l.legendHeight + l.boxHeight*float64(i/l.perRow)
		s.writeMonth(&sb, g, x, y)
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

func (s *SVG) writeLegend(sb *strings.Builder, width float64) {
	ls := s.settings.Legend
	fontSize := float64(ls.LabelFontSize)
	y := fontSize * 1.5
	x := 4.0

	sb.WriteString(`  <g class="legend">` + "\n")
	if ls.TitleShow && ls.TitleName != "" {
		sb.WriteString(fmt.Sprintf(`    <text class="legendTitle" x="%s" y="%s" font-size="%s" fill="%s">%s</text>`+"\n",
			num(x), num(y), num(fontSize), attr(ls.LabelColor), html.EscapeString(ls.TitleName)))
		x += fontSize * float64(len(ls.TitleName)) * 0.6
	}
	for _, m := range s.frame.Legend {
		r := fontSize / 2
		sb.WriteString(fmt.Sprintf(`    <g class="legendItem" data-metric="%s" fill-opacity="%s">`+"\n",
			html.EscapeString(m.Name), num(s.legend.Item(m.Name))))
		sb.WriteString(fmt.Sprintf(`      <circle cx="%s" cy="%s" r="%s" fill="%s"/>`+"\n",
			num(x+r), num(y-r), num(r), attr(m.Color)))
		sb.WriteString(fmt.Sprintf(`      <text x="%s" y="%s" font-size="%s" fill="%s">%s</text>`+"\n",
			num(x+r*3), num(y), num(fontSize), attr(ls.LabelColor), html.EscapeString(m.Name)))
		sb.WriteString(`    </g>` + "\n")
		x += r*4 + fontSize*float64(len(m.Name))*0.6
		if x > width {
			break
		}
	}
	sb.WriteString(`  </g>` + "\n")
}

func (s *SVG) writeMonth(sb *strings.Builder, g calendar.MonthGrid, x, y float64) {
	c := s.settings.Calendar
	geo := s.frame.Geometry
	size := geo.CellSize

	sb.WriteString(fmt.Sprintf(`  <g class="month" data-month="%d-%02d" transform="translate(%s,%s)">`+"\n",
		g.Month.Year, int(g.Month.Month), num(x), num(y)))

	// 見出し
	sb.WriteString(fmt.Sprintf(`    <rect class="monthHeader" x="1" y="1" width="%s" height="%s" fill="%s"/>`+"\n",
		num(geo.MonthWidth()), num(size), attr(c.HeaderColor)))
	sb.WriteString(fmt.Sprintf(`    <text x="%s" y="%s" text-anchor="middle" font-size="%s" fill="%s">%s</text>`+"\n",
		num(geo.MonthWidth()/2), num(size*0.65), num(size/2), attr(c.HeaderTitleColor), g.Title()))

	// 曜日ラベル
	labelSize := float64(int(size/3) + 1)
	for i, label := range calendar.WeekdayLabels(c.FirstWeekday()) {
		sb.WriteString(fmt.Sprintf(`    <text class="weekDay" x="%s" y="%s" text-anchor="middle" font-size="%s" fill="%s">%s</text>`+"\n",
			num(1+size*float64(i)+size/2), num(size*1.75), num(labelSize), attr(c.WeekDayLabelsColor), label))
	}

	for _, cell := range g.InRangeCells() {
		s.writeCell(sb, cell)
	}
	sb.WriteString(`  </g>` + "\n")
}

func (s *SVG) writeCell(sb *strings.Builder, cell calendar.DayCell) {
	c := s.settings.Calendar
	geo := s.frame.Geometry
	r := geo.CellRect(cell)

	fill := s.opts.DefaultFill
	if s.fills[cell.ID] == calendar.FillSelected {
		fill = s.opts.SelectedFill
	}

	// 各セルに矩形と、その中にtitle要素（ツールチップ）を追加
	sb.WriteString(fmt.Sprintf(`    <rect class="cell" id="%s" x="%s" y="%s" width="%s" height="%s" stroke="%s" stroke-width="1" fill="%s" data-date="%s">`,
		cell.ID, num(r.X), num(r.Y), num(r.W), num(r.H), attr(c.CellBorderColor), attr(fill), cell.Date.String()))
	if items, ok := s.frame.DayTooltip(cell.ID); ok {
		sb.WriteString("<title>" + tooltipText(items) + "</title>")
	}
	sb.WriteString("</rect>\n")

	sb.WriteString(fmt.Sprintf(`    <text class="cell_label" x="%s" y="%s" text-anchor="middle" font-size="%s" fill="%s">%d</text>`+"\n",
		num(r.X+r.W/2), num(r.Y+r.H/3), num(geo.CellSize/4), attr(c.DayLabelsColor), cell.DayOfMonth))

	stack, ok := s.frame.Stack(cell.ID)
	if !ok {
		return
	}
	for i, seg := range stack.Segments {
		if !seg.Visible {
			continue
		}
		sb.WriteString(fmt.Sprintf(`    <rect class="metric" x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="%s" data-cell="%s" data-segment="%d" data-metric="%s">`,
			num(seg.Rect.X), num(seg.Rect.Y), num(seg.Rect.W), num(seg.Rect.H), attr(seg.Point.Color),
			num(s.legend.Metric(seg.Point.Metric)), cell.ID, i, html.EscapeString(seg.Point.Metric)))
		if items, ok := s.frame.BarTooltip(cell.ID, i); ok {
			sb.WriteString("<title>" + tooltipText(items) + "</title>")
		}
		sb.WriteString("</rect>\n")
	}
}

// tooltipText joins tooltip items into the text of a title element.
func tooltipText(items []calendar.TooltipItem) string {
	if len(items) == 0 {
		return ""
	}
	lines := []string{html.EscapeString(items[0].Header)}
	for _, it := range items {
		if it.DisplayName == "" {
			continue
		}
		lines = append(lines, html.EscapeString(it.DisplayName+": "+it.Value))
	}
	return strings.Join(lines, "\n")
}

// attr escapes a settings value written into an attribute or style.
func attr(v string) string {
	return html.EscapeString(v)
}

// num formats a coordinate without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
