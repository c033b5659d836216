package calendar

import (
	"testing"
	"time"
)

// TestParseCanonicalDate tests strict parsing of M/D/YYYY strings
func TestParseCanonicalDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Date
		wantOK bool
	}{
		{name: "no padding", input: "3/15/2024", want: Date{2024, time.March, 15}, wantOK: true},
		{name: "zero padded", input: "03/05/2024", want: Date{2024, time.March, 5}, wantOK: true},
		{name: "leap day", input: "2/29/2024", want: Date{2024, time.February, 29}, wantOK: true},
		{name: "not a leap year", input: "2/29/2023"},
		{name: "day 31 in 30 day month", input: "4/31/2024"},
		{name: "month 13", input: "13/1/2024"},
		{name: "month 0", input: "0/1/2024"},
		{name: "day 0", input: "1/0/2024"},
		{name: "year too early", input: "1/1/1899"},
		{name: "year too late", input: "1/1/2100"},
		{name: "two digit year", input: "1/1/24"},
		{name: "dash separator", input: "1-1-2024"},
		{name: "iso format", input: "2024-01-01"},
		{name: "letters", input: "a/1/2024"},
		{name: "sign", input: "+1/1/2024"},
		{name: "empty", input: ""},
		{name: "too many parts", input: "1/1/2024/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCanonicalDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseCanonicalDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseCanonicalDate(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

// TestDateCellIDRoundTrip tests that cell ids and canonical strings agree
func TestDateCellIDRoundTrip(t *testing.T) {
	d := Date{2024, time.March, 15}
	if got := d.CellID(); got != "a3_15_2024" {
		t.Errorf("CellID() = %q, want a3_15_2024", got)
	}
	if got := d.String(); got != "3/15/2024" {
		t.Errorf("String() = %q, want 3/15/2024", got)
	}

	parsed, ok := ParseCanonicalDate(d.String())
	if !ok || parsed.CellID() != d.CellID() {
		t.Errorf("round trip failed: %+v, %v", parsed, ok)
	}

	// 時刻が異なっても同じ日なら同じセルになること
	a := DateOf(time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local))
	b := DateOf(time.Date(2024, 3, 15, 23, 59, 0, 0, time.Local))
	if a.CellID() != b.CellID() {
		t.Errorf("same day produced different ids: %s, %s", a.CellID(), b.CellID())
	}
}

// TestDaysInMonth tests month lengths including leap years
func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.January, 31},
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %s) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

// TestDateCompare tests numeric (not lexical) ordering
func TestDateCompare(t *testing.T) {
	// 文字列比較だと "10/1/2023" < "9/1/2023" になってしまう
	oct := Date{2023, time.October, 1}
	sep := Date{2023, time.September, 1}
	if oct.Compare(sep) <= 0 {
		t.Error("October should sort after September")
	}
	if !sep.Before(oct) {
		t.Error("September should be before October")
	}
	if oct.Compare(oct) != 0 {
		t.Error("date should equal itself")
	}
	if !(Date{2022, time.December, 31}).Before(Date{2023, time.January, 1}) {
		t.Error("year boundary ordering is wrong")
	}
}

// TestAddMonths tests month arithmetic without day overflow
func TestAddMonths(t *testing.T) {
	tests := []struct {
		from Date
		n    int
		want Date
	}{
		{Date{2024, time.March, 31}, -1, Date{2024, time.February, 1}},
		{Date{2024, time.January, 15}, -1, Date{2023, time.December, 1}},
		{Date{2024, time.November, 30}, 3, Date{2025, time.February, 1}},
		{Date{2024, time.May, 1}, 0, Date{2024, time.May, 1}},
	}
	for _, tt := range tests {
		if got := tt.from.AddMonths(tt.n); got != tt.want {
			t.Errorf("%v.AddMonths(%d) = %v, want %v", tt.from, tt.n, got, tt.want)
		}
	}
}
