package ingest

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/model"
	"github.com/xuri/excelize/v2"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// TestReadCSV tests converting a CSV document into a table.
func TestReadCSV(t *testing.T) {
	input := `Date,Sales,Cost,Notes
2024-01-05,10,4,
1/6/2024,,2.5,holiday
,3,1,no date

2024-01-07,n/a,1,
`
	table, err := ReadCSV(strings.NewReader(input), Options{
		TooltipColumns: []string{"Notes"},
		Formats:        map[string]string{"Sales": "#,0"},
		CategoryFormat: "MMM d",
	})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if table.Category.Name != "Date" || table.Category.Format != "MMM d" {
		t.Errorf("Unexpected category: %+v", table.Category)
	}
	// 空行は読み飛ばす
	if len(table.Category.Values) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(table.Category.Values))
	}
	if !table.Category.Values[0].Equal(day(2024, 1, 5)) || !table.Category.Values[1].Equal(day(2024, 1, 6)) {
		t.Errorf("Unexpected dates: %v", table.Category.Values[:2])
	}
	if !table.Category.Values[2].IsZero() {
		t.Errorf("Expected empty date to be null, got %v", table.Category.Values[2])
	}

	if len(table.Columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(table.Columns))
	}
	sales, cost, notes := table.Columns[0], table.Columns[1], table.Columns[2]
	if sales.Format != "#,0" || sales.Role != calendar.RoleMetric {
		t.Errorf("Unexpected Sales column: %+v", sales)
	}
	if notes.Role != calendar.RoleTooltip {
		t.Errorf("Expected Notes to be a tooltip column")
	}

	tests := []struct {
		description string
		got         calendar.Value
		want        string
		null        bool
	}{
		{description: "数値", got: sales.Values[0], want: "10"},
		{description: "空欄は null", got: sales.Values[1], null: true},
		{description: "小数", got: cost.Values[1], want: "2.5"},
		{description: "数値以外は文字列", got: sales.Values[3], want: "n/a"},
		{description: "文字列の列", got: notes.Values[1], want: "holiday"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if tt.null {
				if !tt.got.IsNull() {
					t.Errorf("Expected null, got %v", tt.got)
				}
				return
			}
			if tt.got.String() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tt.got.String())
			}
		})
	}
	if _, ok := sales.Values[3].Float(); ok {
		t.Error("Expected n/a not to be numeric")
	}
}

// TestReadCSVNonFinite tests that NaN and Inf are read as text, not numbers.
func TestReadCSVNonFinite(t *testing.T) {
	input := "Date,Sales\n2024-03-15,NaN\n2024-03-16,Inf\n2024-03-17,-Infinity\n2024-03-18,1e3\n"
	table, err := ReadCSV(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	values := table.Columns[0].Values
	for i, want := range []string{"NaN", "Inf", "-Infinity"} {
		if _, ok := values[i].Float(); ok {
			t.Errorf("Expected %s not to be numeric", want)
		}
		if values[i].String() != want {
			t.Errorf("Expected %q, got %q", want, values[i].String())
		}
	}
	if f, ok := values[3].Float(); !ok || f != 1000 {
		t.Errorf("Expected 1e3 to be 1000, got %v %v", f, ok)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		description string
		input       string
	}{
		{description: "空の入力", input: ""},
		{description: "値列なし", input: "Date\n2024-01-01\n"},
		{description: "重複した列名", input: "Date,A,A\n2024-01-01,1,2\n"},
		{description: "不正な日付", input: "Date,A\n2024-13-45,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), Options{})
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Sales")
	f.SetCellValue(sheet, "C1", "Notes")
	// 日付セルはシリアル値で保存される
	f.SetCellValue(sheet, "A2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	f.SetCellValue(sheet, "B2", 12.5)
	f.SetCellValue(sheet, "A3", "2024-02-11")
	f.SetCellValue(sheet, "C3", "memo")

	path := filepath.Join(t.TempDir(), "data.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	table, err := ReadXLSX(path, Options{TooltipColumns: []string{"Notes"}})
	if err != nil {
		t.Fatalf("ReadXLSX failed: %v", err)
	}

	if len(table.Category.Values) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Category.Values))
	}
	if !table.Category.Values[0].Equal(day(2024, 2, 10)) {
		t.Errorf("Expected 2024-02-10 from serial date, got %v", table.Category.Values[0])
	}
	if !table.Category.Values[1].Equal(day(2024, 2, 11)) {
		t.Errorf("Expected 2024-02-11, got %v", table.Category.Values[1])
	}
	if v, ok := table.Columns[0].Values[0].Float(); !ok || v != 12.5 {
		t.Errorf("Expected Sales 12.5, got %v", table.Columns[0].Values[0])
	}
	if !table.Columns[0].Values[1].IsNull() {
		t.Errorf("Expected missing Sales to be null")
	}
	if table.Columns[1].Role != calendar.RoleTooltip || table.Columns[1].Values[1].String() != "memo" {
		t.Errorf("Unexpected Notes column: %+v", table.Columns[1])
	}
}

func TestRowsAndColumns(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("Date,Sales,Notes\n2024-01-05,10,\n,3,x\n2024-01-06,,memo\n"), Options{
		TooltipColumns: []string{"Notes"},
	})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	defs := Columns(table)
	if len(defs) != 2 || defs[0].Role != model.RoleMetric || defs[1].Role != model.RoleTooltip {
		t.Errorf("Unexpected column definitions: %+v", defs)
	}

	rows := Rows(table)
	// 日付が null の行は除外
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if v, ok := rows[0].Values["Sales"].Number(); !ok || v != 10 {
		t.Errorf("Expected Sales 10, got %v", rows[0].Values["Sales"])
	}
	if !rows[1].Values["Sales"].IsNull() {
		t.Errorf("Expected Sales to be null on second row")
	}
	if s, ok := rows[1].Values["Notes"].Text(); !ok || s != "memo" {
		t.Errorf("Expected Notes memo, got %v", rows[1].Values["Notes"])
	}
}
