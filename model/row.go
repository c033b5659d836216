package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// CellValue は行の1セルの値です。null、数値、文字列のいずれかになります。
type CellValue struct {
	num  *float64
	text *string
}

// NumberValue は数値のCellValueを返します。
func NumberValue(f float64) CellValue {
	return CellValue{num: &f}
}

// TextValue は文字列のCellValueを返します。
func TextValue(s string) CellValue {
	return CellValue{text: &s}
}

// IsNull は値がないかどうかを返します。
func (v CellValue) IsNull() bool {
	return v.num == nil && v.text == nil
}

// Number は数値の場合にその値を返します。
func (v CellValue) Number() (float64, bool) {
	if v.num == nil {
		return 0, false
	}
	return *v.num, true
}

// Text は文字列の場合にその値を返します。
func (v CellValue) Text() (string, bool) {
	if v.text == nil {
		return "", false
	}
	return *v.text, true
}

// MarshalJSON implements json.Marshaler.
func (v CellValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.num != nil:
		return []byte(strconv.FormatFloat(*v.num, 'f', -1, 64)), nil
	case v.text != nil:
		return json.Marshal(*v.text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *CellValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = CellValue{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return errors.New("value must be a number, a string or null")
	}
	*v = NumberValue(f)
	return nil
}

// Row はデータセットの1行（1日分）を表すモデルです。
type Row struct {
	Date   time.Time            `json:"date"`   // カテゴリの日付
	Values map[string]CellValue `json:"values"` // 列名ごとの値
}

// NewRow はRowの新しいインスタンスを作成します。
func NewRow(date time.Time, values map[string]CellValue) (*Row, error) {
	if values == nil {
		values = map[string]CellValue{}
	}
	r := &Row{Date: date, Values: values}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate は行のデータバリデーションを行います。
func (r *Row) Validate() error {
	if r.Date.IsZero() {
		return NewValidationError("date is required")
	}
	for name := range r.Values {
		if name == "" {
			return NewValidationError("column name cannot be empty")
		}
	}
	return nil
}

// ParseRowDate は行の日付として使える文字列を解析します。
// 受け付けるのは YYYY-MM-DD、M/D/YYYY、RFC3339 です。
func ParseRowDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "1/2/2006", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewValidationError("invalid date " + strconv.Quote(s) + ". Use YYYY-MM-DD, M/D/YYYY or RFC3339")
}

// UnmarshalJSON は日付を ParseRowDate の形式で受け付けます。
func (r *Row) UnmarshalJSON(b []byte) error {
	var raw struct {
		Date   string               `json:"date"`
		Values map[string]CellValue `json:"values"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, err := ParseRowDate(raw.Date)
	if err != nil {
		return err
	}
	r.Date = date
	r.Values = raw.Values
	if r.Values == nil {
		r.Values = map[string]CellValue{}
	}
	return nil
}
