package calendar

import (
	"math"
	"strconv"
	"time"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindNumber
	kindText
)

// Value は入力テーブルの1セルの値です。null、数値、数値以外の文字列のいずれかです。
type Value struct {
	kind valueKind
	num  float64
	text string
}

// Null は値なしを表します。
var Null = Value{}

// Number は数値を持つValueを返します。
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Text は数値でない値を持つValueを返します。
func Text(s string) Value {
	return Value{kind: kindText, text: s}
}

// IsNull は値がないかどうかを返します。
func (v Value) IsNull() bool {
	return v.kind == kindNull
}

// Float は数値として解釈できる場合にその値を返します。NaN と無限大は数値として扱いません。
func (v Value) Float() (float64, bool) {
	if v.kind == kindNumber && !math.IsNaN(v.num) && !math.IsInf(v.num, 0) {
		return v.num, true
	}
	return 0, false
}

// IsZero は値がちょうど0の数値かどうかを返します。
func (v Value) IsZero() bool {
	return v.kind == kindNumber && v.num == 0
}

// String は値を書式なしで文字列にします。
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindText:
		return v.text
	}
	return ""
}

// Role は値列の役割です。
type Role int

const (
	// RoleMetric は積み上げバーとして描画される列です。
	RoleMetric Role = iota
	// RoleTooltip はツールチップにのみ表示される列です。
	RoleTooltip
)

func (r Role) String() string {
	if r == RoleTooltip {
		return "tooltip"
	}
	return "metric"
}

// Category は日付のカテゴリ列です。ゼロ値の time.Time は null を表します。
type Category struct {
	Name   string
	Format string
	Values []time.Time
}

// Column は1つの値列です。
type Column struct {
	Name      string
	QueryName string
	Role      Role
	Format    string
	Values    []Value
}

// Table はエンジンへの入力となる表データです。
type Table struct {
	Category Category
	Columns  []Column
}

// usable はテーブルが変換可能な形をしているかを返します。
func (t *Table) usable() bool {
	return t != nil && len(t.Category.Values) > 0 && len(t.Columns) > 0
}
