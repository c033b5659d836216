package host

import (
	"strings"
	"time"

	"github.com/stsysd/koyomi/calendar"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter は書式文字列に従って値と日付を表示用にします。
//
// 値の書式は "0"、"0.00"、"#,0"、"#,0.00"、"0%"、"0.0%" の形で、前後の文字はそのまま残ります
// （例: "$#,0.00"）。日付の書式は yyyy、yy、MMMM、MMM、MM、M、dddd、ddd、dd、d を解釈します。
type Formatter struct {
	printer *message.Printer
}

// NewFormatter は指定言語のFormatterを作成します。
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// FormatValue implements calendar.Formatter.
func (f *Formatter) FormatValue(v calendar.Value, format string) string {
	n, ok := v.Float()
	if !ok {
		return v.String()
	}
	if format == "" {
		return v.String()
	}

	start := strings.IndexAny(format, "#0")
	if start < 0 {
		return v.String()
	}
	end := strings.LastIndexAny(format, "#0.,%") + 1
	prefix, pattern, suffix := format[:start], format[start:end], format[end:]

	percent := strings.HasSuffix(pattern, "%")
	pattern = strings.TrimSuffix(pattern, "%")
	if percent {
		n *= 100
	}

	scale := 0
	if i := strings.IndexByte(pattern, '.'); i >= 0 {
		scale = strings.Count(pattern[i+1:], "0") + strings.Count(pattern[i+1:], "#")
	}
	opts := []number.Option{number.Scale(scale)}
	if !strings.Contains(pattern, ",") {
		opts = append(opts, number.NoSeparator())
	}

	out := f.printer.Sprint(number.Decimal(n, opts...))
	if percent {
		out += "%"
	}
	return prefix + out + suffix
}

var dateTokens = map[string]string{
	"yyyy": "2006",
	"yy":   "06",
	"MMMM": "January",
	"MMM":  "Jan",
	"MM":   "01",
	"M":    "1",
	"dddd": "Monday",
	"ddd":  "Mon",
	"dd":   "02",
	"d":    "2",
}

// FormatDate implements calendar.Formatter. 書式が空なら M/D/YYYY を返します。
func (f *Formatter) FormatDate(t time.Time, format string) string {
	if format == "" {
		return calendar.DateOf(t).String()
	}

	var sb strings.Builder
	for i := 0; i < len(format); {
		c := format[i]
		if c != 'y' && c != 'M' && c != 'd' {
			sb.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(format) && format[j] == c {
			j++
		}
		if layout, ok := dateTokens[format[i:j]]; ok {
			sb.WriteString(t.Format(layout))
		} else {
			sb.WriteString(format[i:j])
		}
		i = j
	}
	return sb.String()
}
