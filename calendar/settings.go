package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stsysd/koyomi/model"
)

// Mode はカレンダーの表示範囲の決め方です。
type Mode int

const (
	// ModeFixed は指定した開始日から指定月数を表示します。
	ModeFixed Mode = iota
	// ModeRelative は今月を基準に前後の月数を表示します。
	ModeRelative
	// ModeYearly は常に12ヶ月を表示します。
	ModeYearly
)

var modeNames = map[Mode]string{
	ModeFixed:    "fixed",
	ModeRelative: "relative",
	ModeYearly:   "yearly",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	mode, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode はモード名（または数値表記）をModeに変換します。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "0":
		return ModeFixed, nil
	case "relative", "1":
		return ModeRelative, nil
	case "yearly", "2":
		return ModeYearly, nil
	}
	return 0, model.NewValidationError(fmt.Sprintf("unknown calendar mode %q", s))
}

// CalendarSettings はカレンダー本体の設定です。
type CalendarSettings struct {
	Mode                 Mode   `json:"mode" yaml:"mode" validate:"min=0,max=2"`
	StartDate            string `json:"start_date" yaml:"start_date"`
	NumOfMonths          int    `json:"num_of_months" yaml:"num_of_months" validate:"min=1,max=60"`
	NumOfPreviousMonths  int    `json:"num_of_previous_months" yaml:"num_of_previous_months" validate:"min=0,max=60"`
	NumOfFollowingMonths int    `json:"num_of_following_months" yaml:"num_of_following_months" validate:"min=1,max=60"`
	FirstDay             int    `json:"first_day" yaml:"first_day" validate:"min=0,max=6"`
	CellSize             int    `json:"cell_size" yaml:"cell_size" validate:"min=20,max=60"`
	CellBorderColor      string `json:"cell_border_color" yaml:"cell_border_color" validate:"omitempty,color"`
	HeaderColor          string `json:"header_color" yaml:"header_color" validate:"omitempty,color"`
	HeaderTitleColor     string `json:"header_title_color" yaml:"header_title_color" validate:"omitempty,color"`
	WeekDayLabelsColor   string `json:"week_day_labels_color" yaml:"week_day_labels_color" validate:"omitempty,color"`
	DayLabelsColor       string `json:"day_labels_color" yaml:"day_labels_color" validate:"omitempty,color"`
}

// LegendSettings は凡例の設定です。
type LegendSettings struct {
	Show          bool   `json:"show" yaml:"show"`
	LabelColor    string `json:"label_color" yaml:"label_color" validate:"omitempty,color"`
	LabelFontSize int    `json:"label_font_size" yaml:"label_font_size" validate:"min=4,max=30"`
	TitleShow     bool   `json:"title_show" yaml:"title_show"`
	TitleName     string `json:"title_name" yaml:"title_name"`
}

// Settings はエンジン全体の設定です。
type Settings struct {
	Calendar CalendarSettings `json:"calendar" yaml:"calendar"`
	Legend   LegendSettings   `json:"legend" yaml:"legend"`
	// MetricColors はメトリクス名ごとの色の上書きです。
	MetricColors map[string]string `json:"metric_colors,omitempty" yaml:"metric_colors,omitempty" validate:"dive,color"`
}

// DefaultSettings は既定の設定を返します。開始日は today の日付です。
func DefaultSettings(today time.Time) Settings {
	return Settings{
		Calendar: CalendarSettings{
			Mode:                 ModeFixed,
			StartDate:            DateOf(today).String(),
			NumOfMonths:          12,
			NumOfPreviousMonths:  0,
			NumOfFollowingMonths: 5,
			FirstDay:             0,
			CellSize:             50,
			CellBorderColor:      "black",
			HeaderColor:          "black",
			HeaderTitleColor:     "white",
			WeekDayLabelsColor:   "black",
			DayLabelsColor:       "black",
		},
		Legend: LegendSettings{
			Show:          false,
			LabelColor:    "black",
			LabelFontSize: 10,
			TitleShow:     false,
			TitleName:     "Metrics",
		},
	}
}

var settingsValidate = newSettingsValidator()

// newSettingsValidator は色の検証タグ color を登録したバリデータを作ります。
// color は16進表記、rgb()などの関数表記、色名のいずれかです。
func newSettingsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterAlias("color", "hexcolor|rgb|rgba|hsl|hsla|alpha")
	return v
}

// Validate は設定値の範囲を検証します。範囲外の値は設定時点で拒否します。
func (s Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating settings: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return model.NewValidationError(strings.Join(msgs, "; "))
}

// FirstWeekday は週の開始曜日を返します。
func (c CalendarSettings) FirstWeekday() time.Weekday {
	return time.Weekday(((c.FirstDay % 7) + 7) % 7)
}

// NumberRange は数値設定の有効範囲です。
type NumberRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ObjectInstance は設定スキーマの1オブジェクトを表します。
type ObjectInstance struct {
	ObjectName  string                 `json:"object_name"`
	DisplayName string                 `json:"display_name"`
	Properties  map[string]any         `json:"properties"`
	ValidValues map[string]NumberRange `json:"valid_values,omitempty"`
	// Selector はメトリクス色のときに対象シリーズのIDを保持します。
	Selector *Identity `json:"selector,omitempty"`
}

// EnumerateObjects は設定画面に公開する項目を列挙します。
// objectName は "calendarSettings"、"legendSettings"、"metricsSettings" のいずれかです。
func EnumerateObjects(s Settings, objectName string, metrics []MetricDescriptor) []ObjectInstance {
	switch objectName {
	case "metricsSettings":
		out := make([]ObjectInstance, 0, len(metrics))
		for _, m := range metrics {
			id := m.Identity
			out = append(out, ObjectInstance{
				ObjectName:  objectName,
				DisplayName: m.Name,
				Properties:  map[string]any{"metricColor": m.Color},
				Selector:    &id,
			})
		}
		return out
	case "legendSettings":
		return []ObjectInstance{{
			ObjectName:  objectName,
			DisplayName: "Legend",
			Properties: map[string]any{
				"show":                s.Legend.Show,
				"legendLabelColor":    s.Legend.LabelColor,
				"legendLabelFontSize": s.Legend.LabelFontSize,
				"legendTitleShow":     s.Legend.TitleShow,
				"legendTitleName":     s.Legend.TitleName,
			},
			ValidValues: map[string]NumberRange{
				"legendLabelFontSize": {Min: 4, Max: 30},
			},
		}}
	case "calendarSettings":
		c := s.Calendar
		props := map[string]any{
			"calendarType":             c.Mode.String(),
			"firstDay":                 c.FirstDay,
			"cellSize":                 c.CellSize,
			"cellBorderColor":          c.CellBorderColor,
			"calendarHeaderColor":      c.HeaderColor,
			"calendarHeaderTitleColor": c.HeaderTitleColor,
			"weekDayLabelsColor":       c.WeekDayLabelsColor,
			"dayLabelsColor":           c.DayLabelsColor,
		}
		valid := map[string]NumberRange{"cellSize": {Min: 20, Max: 60}}
		if c.Mode == ModeFixed {
			props["startDate"] = c.StartDate
			props["numOfMonths"] = c.NumOfMonths
			valid["numOfMonths"] = NumberRange{Min: 1, Max: 60}
		} else {
			props["numOfPreviousMonths"] = c.NumOfPreviousMonths
			props["numOfFollowingMonths"] = c.NumOfFollowingMonths
			valid["numOfPreviousMonths"] = NumberRange{Min: 0, Max: 60}
			valid["numOfFollowingMonths"] = NumberRange{Min: 1, Max: 60}
		}
		return []ObjectInstance{{
			ObjectName:  objectName,
			DisplayName: "Calendar",
			Properties:  props,
			ValidValues: valid,
		}}
	}
	return nil
}
