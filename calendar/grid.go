package calendar

import (
	"strconv"
	"time"
)

var weekDays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthNames = []string{"January", "February", "March", "April",
	"May", "June", "July", "August",
	"September", "October", "November", "December"}

// DayCell は月グリッドの1マスです。範囲外のマスは ID が空です。
type DayCell struct {
	ID         string
	Date       Date
	DayOfMonth int
	WeekRow    int
	WeekColumn int
	InRange    bool
}

// MonthGrid は1ヶ月分のグリッドです。
type MonthGrid struct {
	Month       MonthDescriptor
	Rows        int
	DaysInMonth int
	// Cells は行優先で Rows*7 個並びます。
	Cells []DayCell
}

// Title は "January 2024" 形式の見出しを返します。
func (g MonthGrid) Title() string {
	return monthNames[g.Month.Index()] + " " + strconv.Itoa(g.Month.Year)
}

// InRangeCells は日付を持つセルだけを返します。
func (g MonthGrid) InRangeCells() []DayCell {
	out := make([]DayCell, 0, g.DaysInMonth)
	for _, c := range g.Cells {
		if c.InRange {
			out = append(out, c)
		}
	}
	return out
}

// WeekdayLabels は週の開始曜日に合わせて並べた曜日ラベルを返します。
func WeekdayLabels(firstDay time.Weekday) []string {
	labels := make([]string, 7)
	for i := range 7 {
		labels[i] = weekDays[(int(firstDay)+i)%7]
	}
	return labels
}

// WeekRows は date から月末までを表示するのに必要な行数を返します。
func WeekRows(date Date, firstDay time.Weekday) int {
	weekday := int(date.Weekday())
	first := int(firstDay)

	shown := DaysInMonth(date.Year, date.Month) - date.Day + 1

	var firstWeek int
	if first > weekday {
		firstWeek = first - weekday
	} else {
		firstWeek = 7 - (weekday - first)
	}

	rest := shown - firstWeek
	return 1 + (rest+6)/7
}

// BuildMonthGrid は1ヶ月分のセル配置を計算します。
// 最初の月は start の日から、それ以外は1日から並べます。
func BuildMonthGrid(m MonthDescriptor, start Date, firstDay time.Weekday) MonthGrid {
	from := Date{Year: m.Year, Month: m.Month, Day: 1}
	if m.First {
		from = start
	}

	offset := (int(from.Weekday()) - int(firstDay) + 7) % 7
	rows := WeekRows(from, firstDay)
	days := DaysInMonth(m.Year, m.Month)

	cells := make([]DayCell, 0, rows*7)
	count := 0
	day := from.Day
	for row := range rows {
		for col := range 7 {
			cell := DayCell{WeekRow: row, WeekColumn: col}
			if count >= offset && day <= days {
				d := Date{Year: m.Year, Month: m.Month, Day: day}
				cell.ID = d.CellID()
				cell.Date = d
				cell.DayOfMonth = day
				cell.InRange = true
				day++
			}
			cells = append(cells, cell)
			count++
		}
	}

	return MonthGrid{
		Month:       m,
		Rows:        rows,
		DaysInMonth: days,
		Cells:       cells,
	}
}

// Rect は描画用の矩形です。
type Rect struct {
	X, Y, W, H float64
}

// Geometry はセルサイズからピクセル座標を計算します。
type Geometry struct {
	CellSize float64
}

// CellRect はセルの矩形を返します。見出し行と曜日行の分だけ下にずらします。
func (g Geometry) CellRect(c DayCell) Rect {
	return Rect{
		X: 1 + g.CellSize*float64(c.WeekColumn),
		Y: 1 + g.CellSize*2 + g.CellSize*float64(c.WeekRow),
		W: g.CellSize,
		H: g.CellSize,
	}
}

// MonthWidth は1ヶ月分の幅を返します。
func (g Geometry) MonthWidth() float64 {
	return g.CellSize * 7
}

// MonthHeight は行数に応じた1ヶ月分の高さを返します。
func (g Geometry) MonthHeight(rows int) float64 {
	return g.CellSize*float64(rows+2) + 2
}
