package calendar

// Viewport は描画領域の大きさです。
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Frame は1回の更新サイクルで作られる派生データです。次の更新で丸ごと捨てられます。
type Frame struct {
	Range    DateRange
	Viewport Viewport
	Geometry Geometry
	Dataset  Dataset
	// Legend は表示期間内にデータを持つメトリクスです。
	Legend []MetricDescriptor
	Months []MonthGrid

	cells         map[string]DayCell
	dayPoints     map[string][]DataPoint
	stacks        map[string]Stack
	identityCells map[string]string
	dayTooltips   map[string][]TooltipItem
	barTooltips   map[string][][]TooltipItem
}

func newFrame() *Frame {
	return &Frame{
		cells:         make(map[string]DayCell),
		dayPoints:     make(map[string][]DataPoint),
		stacks:        make(map[string]Stack),
		identityCells: make(map[string]string),
		dayTooltips:   make(map[string][]TooltipItem),
		barTooltips:   make(map[string][][]TooltipItem),
	}
}

// Cell はセルIDに対応するセルを返します。
func (f *Frame) Cell(cellID string) (DayCell, bool) {
	c, ok := f.cells[cellID]
	return c, ok
}

// HasCell はセルが描画対象かどうかを返します。
func (f *Frame) HasCell(cellID string) bool {
	_, ok := f.cells[cellID]
	return ok
}

// DayPoints はその日のすべてのデータを返します。
func (f *Frame) DayPoints(cellID string) []DataPoint {
	return f.dayPoints[cellID]
}

// Stack はその日の積み上げバーを返します。
func (f *Frame) Stack(cellID string) (Stack, bool) {
	s, ok := f.stacks[cellID]
	return s, ok
}

// DayTooltip はセル全体のツールチップを返します。データのない日は ok=false です。
func (f *Frame) DayTooltip(cellID string) ([]TooltipItem, bool) {
	items, ok := f.dayTooltips[cellID]
	return items, ok
}

// BarTooltip は積み上げバー1段のツールチップを返します。
func (f *Frame) BarTooltip(cellID string, segment int) ([]TooltipItem, bool) {
	bars, ok := f.barTooltips[cellID]
	if !ok || segment < 0 || segment >= len(bars) || bars[segment] == nil {
		return nil, false
	}
	return bars[segment], true
}

// CellForIdentity は選択識別子をセルIDに戻します。
// このサイクルで作った識別子にない場合は、識別子が持つ日付から求めます。
func (f *Frame) CellForIdentity(id Identity) (string, bool) {
	if f != nil {
		if cellID, ok := f.identityCells[id.Key]; ok {
			return cellID, true
		}
	}
	d, ok := ParseCanonicalDate(id.Date)
	if !ok {
		return "", false
	}
	return d.CellID(), true
}
