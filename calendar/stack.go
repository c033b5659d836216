package calendar

import (
	"sort"
)

// labelMarginRatio はセル上部に日付ラベル用として残す割合の逆数です。
const labelMarginRatio = 2.3

// Segment は積み上げバーの1段です。
type Segment struct {
	Point    DataPoint
	Fraction float64
	// Visible が false の段（値が0など）は描画されませんが、セルのクリック対象には残ります。
	Visible bool
	Rect    Rect
}

// Stack は1日分の積み上げバーです。
type Stack struct {
	CellID   string
	Segments []Segment
	// CellTarget はセル自体をクリックしたときに選択されるデータです。
	CellTarget *DataPoint
}

// VisibleSegments は描画される段だけを返します。
func (s Stack) VisibleSegments() []Segment {
	var out []Segment
	for _, seg := range s.Segments {
		if seg.Visible {
			out = append(out, seg)
		}
	}
	return out
}

// AvailableHeight はバーに使える高さを返します。
func AvailableHeight(cellSize float64) float64 {
	return cellSize - cellSize/labelMarginRatio
}

// LayoutStack は同じ日のデータを値の大きさに比例して積み上げます。
// RoleMetric の点だけを対象とし、StackOrder の昇順に下から積みます。
func LayoutStack(points []DataPoint, cell Rect, cellSize float64) Stack {
	var metrics []DataPoint
	for _, p := range points {
		if p.Role == RoleMetric {
			metrics = append(metrics, p)
		}
	}
	if len(metrics) == 0 {
		return Stack{}
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].StackOrder < metrics[j].StackOrder
	})

	cellID := metrics[0].CellID
	sum := 0.0
	for _, p := range metrics {
		if p.CellID != cellID {
			continue
		}
		if v, ok := p.Value.Float(); ok {
			sum += v
		}
	}

	available := AvailableHeight(cellSize)
	width := cellSize - 2
	// 下端から上へ積む
	bottom := cellSize

	stack := Stack{CellID: cellID, CellTarget: &metrics[0]}
	for _, p := range metrics {
		seg := Segment{Point: p}
		fraction := heightFraction(p, sum)
		if fraction != 0 {
			height := available * fraction
			seg.Fraction = fraction
			seg.Visible = true
			seg.Rect = Rect{
				X: cell.X + 1,
				Y: cell.Y + bottom - height - 1,
				W: width,
				H: height,
			}
			bottom -= height
		}
		stack.Segments = append(stack.Segments, seg)
	}
	return stack
}

// heightFraction は値を合計で割った比率を返します。数値でない値は0として扱います。
func heightFraction(p DataPoint, sum float64) float64 {
	v, ok := p.Value.Float()
	if !ok || v == 0 || sum == 0 {
		return 0
	}
	return v / sum
}
