package calendar

// LegendState は凡例項目とメトリクスバーの不透明度です。
type LegendState struct {
	ItemOpacity   map[string]float64
	MetricOpacity map[string]float64
}

// Item は凡例項目の不透明度を返します。未設定なら1です。
func (l LegendState) Item(name string) float64 {
	if v, ok := l.ItemOpacity[name]; ok {
		return v
	}
	return 1
}

// Metric はメトリクスバーの不透明度を返します。未設定なら1です。
func (l LegendState) Metric(name string) float64 {
	if v, ok := l.MetricOpacity[name]; ok {
		return v
	}
	return 1
}

// legendAck は凡例クリックに対するホストの確定結果です。
type legendAck struct {
	clicked string
	active  int
}

// ApplyLegendSelection は凡例クリックの確定後の不透明度を計算します。
// 同じ入力に対しては常に同じ結果を返すため、遅れて適用しても問題ありません。
func ApplyLegendSelection(metrics []MetricDescriptor, clicked string, active int) LegendState {
	st := LegendState{
		ItemOpacity:   make(map[string]float64, len(metrics)),
		MetricOpacity: make(map[string]float64, len(metrics)),
	}
	for _, m := range metrics {
		item := 1.0
		if active > 0 && m.Name != clicked {
			item = 0.5
		}
		st.ItemOpacity[m.Name] = item

		bar := 1.0
		if active > 0 && m.Name != clicked {
			bar = 0.3
		}
		st.MetricOpacity[m.Name] = bar
	}
	return st
}
