// Package ingest は、CSVやXLSXの表をカレンダーの入力データに変換します。
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/model"
	"github.com/xuri/excelize/v2"
)

// Options は読み込み時の列の扱いを指定します。
type Options struct {
	// TooltipColumns はツールチップにのみ表示する列名です。
	TooltipColumns []string
	// Formats は列名ごとの値の書式です。
	Formats map[string]string
	// CategoryFormat は日付の表示書式です。
	CategoryFormat string
	// Sheet は読み込むシート名です。空の場合は最初のシートを使います。XLSXのみ。
	Sheet string
}

// ReadCSV はヘッダー行つきのCSVを読み込みます。1列目が日付、残りが値列です。
func ReadCSV(r io.Reader, opts Options) (*calendar.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, model.NewValidationError(fmt.Sprintf("invalid csv: %v", perr))
		}
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return buildTable(records, opts, model.ParseRowDate)
}

// ReadXLSX はXLSXファイルのシートを読み込みます。日付列はExcelのシリアル値も受け付けます。
func ReadXLSX(path string, opts Options) (*calendar.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	// 書式適用前の値を読むと日付セルはシリアル値になる
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	use1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}
	return buildTable(rows, opts, func(s string) (time.Time, error) {
		return parseExcelDate(s, use1904)
	})
}

func parseExcelDate(s string, use1904 bool) (time.Time, error) {
	if t, err := model.ParseRowDate(s); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.ParseRowDate(s)
	}
	t, err := excelize.ExcelDateToTime(serial, use1904)
	if err != nil {
		return time.Time{}, model.NewValidationError(fmt.Sprintf("invalid excel date %q", s))
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
}

// buildTable はヘッダー行と値の行から表データを作ります。
func buildTable(records [][]string, opts Options, parseDate func(string) (time.Time, error)) (*calendar.Table, error) {
	if len(records) == 0 {
		return nil, model.NewValidationError("input is empty")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, model.NewValidationError("input needs a date column and at least one value column")
	}

	t := &calendar.Table{
		Category: calendar.Category{Name: strings.TrimSpace(header[0]), Format: opts.CategoryFormat},
	}
	seen := map[string]bool{}
	for _, h := range header[1:] {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, model.NewValidationError("column name cannot be empty")
		}
		if seen[name] {
			return nil, model.NewValidationError(fmt.Sprintf("duplicate column name %q", name))
		}
		seen[name] = true

		role := calendar.RoleMetric
		if slices.Contains(opts.TooltipColumns, name) {
			role = calendar.RoleTooltip
		}
		t.Columns = append(t.Columns, calendar.Column{
			Name:      name,
			QueryName: name,
			Role:      role,
			Format:    opts.Formats[name],
		})
	}

	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}

		var date time.Time
		if raw := strings.TrimSpace(rec[0]); raw != "" {
			d, err := parseDate(raw)
			if err != nil {
				return nil, model.NewValidationError(fmt.Sprintf("line %d: %v", i+2, err))
			}
			date = d
		}
		t.Category.Values = append(t.Category.Values, date)

		for c := range t.Columns {
			raw := ""
			if c+1 < len(rec) {
				raw = strings.TrimSpace(rec[c+1])
			}
			t.Columns[c].Values = append(t.Columns[c].Values, parseValue(raw))
		}
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// parseValue は空文字列を null、数値を数値、それ以外を文字列として扱います。
func parseValue(s string) calendar.Value {
	if s == "" {
		return calendar.Null
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return calendar.Number(f)
	}
	return calendar.Text(s)
}

// Columns は表データの列から保存用の列定義を作ります。
func Columns(t *calendar.Table) []model.ColumnDef {
	defs := make([]model.ColumnDef, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, model.ColumnDef{
			Name:      c.Name,
			QueryName: c.QueryName,
			Role:      c.Role.String(),
			Format:    c.Format,
		})
	}
	return defs
}

// Rows は表データを日付ごとの行に変換します。日付が null の行は含めません。
func Rows(t *calendar.Table) []*model.Row {
	var rows []*model.Row
	for i, date := range t.Category.Values {
		if date.IsZero() {
			continue
		}
		values := make(map[string]model.CellValue, len(t.Columns))
		for _, c := range t.Columns {
			if i >= len(c.Values) {
				continue
			}
			v := c.Values[i]
			if f, ok := v.Float(); ok {
				values[c.Name] = model.NumberValue(f)
			} else if !v.IsNull() {
				values[c.Name] = model.TextValue(v.String())
			} else {
				values[c.Name] = model.CellValue{}
			}
		}
		rows = append(rows, &model.Row{Date: date, Values: values})
	}
	return rows
}
