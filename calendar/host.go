package calendar

import (
	"time"
)

// Identity はホストと選択状態をやり取りするための識別子です。
// Key のみで比較します。Date はカテゴリ識別子の場合に正規形式の日付を保持します。
type Identity struct {
	Key    string `json:"key"`
	Date   string `json:"date,omitempty"`
	Series string `json:"series,omitempty"`
}

// ColorResolver はシリーズごとの安定した色を返します。
type ColorResolver interface {
	Color(seriesKey string) string
}

// Formatter は値と日付を表示用の文字列にします。
type Formatter interface {
	FormatValue(v Value, format string) string
	FormatDate(t time.Time, format string) string
}

// IdentityFactory は選択用の識別子を生成します。
// 同じ引数からは常に同じ識別子を返さなければなりません。
type IdentityFactory interface {
	CategoryIdentity(categoryIndex int, date, series string) Identity
	SeriesIdentity(seriesKey string) Identity
}

// SelectionManager はホスト側の選択管理です。
type SelectionManager interface {
	// Select は識別子を選択し、確定後の選択数を一度だけ送るチャネルを返します。
	Select(id Identity, additive bool) <-chan int
	Clear()
	CurrentIDs() []Identity
	// OnChanged は外部から選択が変わったときに呼ばれる関数を登録します。
	OnChanged(fn func(ids []Identity))
}

// FillState はセルの塗り状態です。
type FillState int

const (
	FillDefault FillState = iota
	FillSelected
)

// Painter はセルの塗り直しを行う描画先です。
type Painter interface {
	PaintCell(cellID string, state FillState)
}

// Surface はフレーム全体を描画する描画先です。
type Surface interface {
	Painter
	Draw(f *Frame, s Settings, legend LegendState)
}
