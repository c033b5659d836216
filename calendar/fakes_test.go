package calendar

import (
	"fmt"
	"time"
)

// テスト用の協調者

type fakeColors map[string]string

func (c fakeColors) Color(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return "#999999"
}

type fakeFormat struct{}

func (fakeFormat) FormatValue(v Value, format string) string {
	if format != "" {
		return format + ":" + v.String()
	}
	return v.String()
}

func (fakeFormat) FormatDate(t time.Time, format string) string {
	return DateOf(t).String()
}

type fakeIdentities struct{}

func (fakeIdentities) CategoryIdentity(idx int, date, series string) Identity {
	return Identity{Key: fmt.Sprintf("cat|%s|%s", date, series), Date: date, Series: series}
}

func (fakeIdentities) SeriesIdentity(key string) Identity {
	return Identity{Key: "series|" + key, Series: key}
}

type selectCall struct {
	id       Identity
	additive bool
}

// fakeHost は呼び出しを記録する SelectionManager です。
type fakeHost struct {
	selected []Identity
	calls    []selectCall
	clears   int
	listener func([]Identity)
	// hold が true のとき Select の結果を送らずに保留します。
	hold    bool
	pending chan int
}

func (h *fakeHost) Select(id Identity, additive bool) <-chan int {
	h.calls = append(h.calls, selectCall{id: id, additive: additive})
	if !additive {
		h.selected = nil
	}
	h.selected = append(h.selected, id)
	ch := make(chan int, 1)
	if h.hold {
		h.pending = ch
		return ch
	}
	ch <- len(h.selected)
	return ch
}

func (h *fakeHost) Clear() {
	h.clears++
	h.selected = nil
}

func (h *fakeHost) CurrentIDs() []Identity {
	return h.selected
}

func (h *fakeHost) OnChanged(fn func([]Identity)) {
	h.listener = fn
}

// fakeSurface は塗りの最終状態と描画回数を記録します。
type fakeSurface struct {
	fills  map[string]FillState
	draws  int
	legend *LegendState
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{fills: make(map[string]FillState)}
}

func (s *fakeSurface) PaintCell(cellID string, state FillState) {
	s.fills[cellID] = state
}

func (s *fakeSurface) Draw(f *Frame, st Settings, legend LegendState) {
	s.draws++
	s.fills = make(map[string]FillState)
}

func (s *fakeSurface) PaintLegend(st LegendState) {
	s.legend = &st
}

func (s *fakeSurface) selected() []string {
	var out []string
	for id, st := range s.fills {
		if st == FillSelected {
			out = append(out, id)
		}
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func testDeps() TransformDeps {
	return TransformDeps{
		Colors:     fakeColors{"Sales": "#ff0000", "Cost": "#0000ff"},
		Format:     fakeFormat{},
		Identities: fakeIdentities{},
	}
}
