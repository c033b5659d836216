package calendar

import (
	"slices"
	"sort"
)

// TooltipItem はツールチップの1行です。
type TooltipItem struct {
	Header      string `json:"header"`
	DisplayName string `json:"display_name,omitempty"`
	Color       string `json:"color,omitempty"`
	Value       string `json:"value,omitempty"`
	// HasValue は列に値があったかどうかを示します。値がない列も行としては残ります。
	HasValue bool `json:"has_value"`
}

// TooltipContext はツールチップ組み立てに使う共通情報です。
type TooltipContext struct {
	// Baseline はツールチップ専用列の名前（アルファベット順）です。
	Baseline []string
	// Preference は1本のバーのツールチップを並べ替える優先順です。
	Preference []string
	ColorOf    func(name string) string
	Format     Formatter
}

// withoutZero は値がちょうど0のデータを取り除きます。
func withoutZero(points []DataPoint) []DataPoint {
	out := make([]DataPoint, 0, len(points))
	for _, p := range points {
		if !p.Value.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

// lastByMetric は指定メトリクスに一致する最後のデータを探します。
func lastByMetric(points []DataPoint, name string) (DataPoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Metric == name {
			return points[i], true
		}
	}
	return DataPoint{}, false
}

func (c TooltipContext) item(header, name string, points []DataPoint) TooltipItem {
	it := TooltipItem{
		Header:      header,
		DisplayName: name,
		Color:       c.ColorOf(name),
	}
	if p, ok := lastByMetric(points, name); ok {
		it.Value = c.Format.FormatValue(p.Value, p.Format)
		it.HasValue = true
	}
	return it
}

// DayTooltip はセル全体のツールチップを組み立てます。
// 0でないデータがない日は見出しだけの1行になります。
func (c TooltipContext) DayTooltip(dayPoints []DataPoint, header string) []TooltipItem {
	points := withoutZero(dayPoints)
	if len(points) == 0 {
		return []TooltipItem{{Header: header}}
	}

	items := make([]TooltipItem, 0, len(c.Baseline))
	for _, name := range c.Baseline {
		items = append(items, c.item(header, name, points))
	}
	return items
}

// BarTooltip は積み上げバー1本のツールチップを組み立てます。
// 先頭にバー自身の値を置き、残りの列を加えたあと優先順で並べ替えます。
func (c TooltipContext) BarTooltip(dayPoints []DataPoint, bar DataPoint) []TooltipItem {
	points := withoutZero(dayPoints)

	items := []TooltipItem{{
		Header:      bar.DisplayDate,
		DisplayName: bar.Metric,
		Color:       bar.Color,
		Value:       c.Format.FormatValue(bar.Value, bar.Format),
		HasValue:    true,
	}}
	for _, name := range c.Baseline {
		if name == bar.Metric {
			continue
		}
		items = append(items, c.item(bar.DisplayDate, name, points))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return slices.Index(c.Preference, items[i].DisplayName) < slices.Index(c.Preference, items[j].DisplayName)
	})
	return items
}

// TooltipPreference はツールチップ専用列を先に、残りの積み上げメトリクスを列順に並べます。
func TooltipPreference(baseline []string, legend []MetricDescriptor) []string {
	pref := slices.Clone(baseline)
	for _, m := range legend {
		if !slices.Contains(baseline, m.Name) {
			pref = append(pref, m.Name)
		}
	}
	return pref
}
