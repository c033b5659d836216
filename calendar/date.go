// Package calendar はカレンダーグリッドへのデータバインディングとレイアウト計算を提供します。
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date はタイムゾーンに依存しないローカルの暦日を表します。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf は time.Time の暦日部分を取り出します。
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time はローカルタイムゾーンの0時としてtime.Timeに変換します。
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.Local)
}

// IsZero は未設定の日付かどうかを返します。
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String は正規形式 M/D/YYYY（ゼロ埋めなし）を返します。
func (d Date) String() string {
	return fmt.Sprintf("%d/%d/%d", int(d.Month), d.Day, d.Year)
}

// CellID はこの日に対応するセルIDを返します。
// DayCellとDataPointの両方がこの関数からIDを得るため、等値比較で結合できます。
func (d Date) CellID() string {
	return fmt.Sprintf("a%d_%d_%d", int(d.Month), d.Day, d.Year)
}

// Weekday は曜日を返します。
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// FirstOfMonth は同じ月の1日を返します。
func (d Date) FirstOfMonth() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// AddMonths は月単位で加算した月の1日を返します。
func (d Date) AddMonths(n int) Date {
	t := time.Date(d.Year, d.Month+time.Month(n), 1, 0, 0, 0, 0, time.Local)
	return DateOf(t)
}

// Compare は (年, 月, 日) の数値比較を行います。文字列比較は使いません。
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before は d が o より前の日かどうかを返します。
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// DaysInMonth は指定月の日数を返します。
// 33日目を正規化した結果の日から逆算するため、うるう年も正しく扱えます。
func DaysInMonth(year int, month time.Month) int {
	return 33 - time.Date(year, month, 33, 0, 0, 0, 0, time.UTC).Day()
}

// ParseCanonicalDate は M/D/YYYY 形式の文字列を厳密に解析します。
// 月は1-12、日は1-31かつその月の日数以下、年は1900-2099のみ受け付けます。
// 解析できない場合は ok=false を返し、部分的に正しい日付を返すことはありません。
func ParseCanonicalDate(s string) (Date, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Date{}, false
	}

	month, ok := parseDigits(parts[0], 1, 2)
	if !ok || month < 1 || month > 12 {
		return Date{}, false
	}
	day, ok := parseDigits(parts[1], 1, 2)
	if !ok || day < 1 || day > 31 {
		return Date{}, false
	}
	year, ok := parseDigits(parts[2], 4, 4)
	if !ok || year < 1900 || year > 2099 {
		return Date{}, false
	}
	if day > DaysInMonth(year, time.Month(month)) {
		return Date{}, false
	}

	return Date{Year: year, Month: time.Month(month), Day: day}, true
}

// parseDigits は数字のみで構成され、桁数が範囲内の文字列を整数に変換します。
func parseDigits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
