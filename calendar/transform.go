package calendar

import (
	"sort"

	"github.com/samber/lo"
)

// MaxColumns は処理する値列の上限です。超えた列は無視します。
const MaxColumns = 100

// DataPoint は1日・1メトリクス分の正規化済みデータです。
type DataPoint struct {
	Date        Date
	DisplayDate string
	Metric      string
	Value       Value
	Color       string
	// StackOrder は積み上げ順です。後に宣言された列ほど小さく、0が最下段になります。
	StackOrder int
	CellID     string
	Role       Role
	Format     string
	Identity   Identity
}

// MetricDescriptor は凡例とツールチップ用の列情報です。
type MetricDescriptor struct {
	Name     string
	Color    string
	Role     Role
	Identity Identity
}

// Dataset は変換結果です。
type Dataset struct {
	// Points は日付の降順に並んでいます。
	Points         []DataPoint
	Metrics        []MetricDescriptor
	TooltipColumns []string
	// Dates は Points に現れる日付の一覧（降順）で、カテゴリインデックスとして使います。
	Dates []Date
}

// TransformDeps は変換に必要な外部の協調者です。
type TransformDeps struct {
	Colors     ColorResolver
	Format     Formatter
	Identities IdentityFactory
}

type rawPoint struct {
	date   Date
	column int
	value  Value
}

// Transform は表データを正規化されたDataPointに変換します。
// テーブルが不完全な場合は空の結果を返します。
func Transform(t *Table, s Settings, deps TransformDeps) Dataset {
	if !t.usable() {
		return Dataset{}
	}

	total := len(t.Columns)
	columns := t.Columns
	if len(columns) > MaxColumns {
		columns = columns[:MaxColumns]
	}

	colors := make([]string, len(columns))
	metrics := make([]MetricDescriptor, 0, len(columns))
	var raws []rawPoint
	for pos, col := range columns {
		colors[pos] = resolveColor(s, deps.Colors, col.Name)

		n := max(len(t.Category.Values), len(col.Values))
		for i := range n {
			if i >= len(t.Category.Values) || i >= len(col.Values) {
				continue
			}
			at := t.Category.Values[i]
			v := col.Values[i]
			if at.IsZero() || v.IsNull() {
				continue
			}
			raws = append(raws, rawPoint{date: DateOf(at), column: pos, value: v})
		}

		seriesKey := col.QueryName
		if seriesKey == "" {
			seriesKey = col.Name
		}
		metrics = append(metrics, MetricDescriptor{
			Name:     col.Name,
			Color:    colors[pos],
			Role:     col.Role,
			Identity: deps.Identities.SeriesIdentity(seriesKey),
		})
	}

	// 日付の降順。同じ日付の中では列の宣言順を保つ
	sort.SliceStable(raws, func(i, j int) bool {
		return raws[i].date.Compare(raws[j].date) > 0
	})

	dates := lo.Uniq(lo.Map(raws, func(r rawPoint, _ int) Date { return r.date }))
	categoryIndex := make(map[Date]int, len(dates))
	for i, d := range dates {
		categoryIndex[d] = i
	}

	points := make([]DataPoint, 0, len(raws))
	for _, r := range raws {
		col := columns[r.column]
		canonical := r.date.String()
		points = append(points, DataPoint{
			Date:        r.date,
			DisplayDate: deps.Format.FormatDate(r.date.Time(), t.Category.Format),
			Metric:      col.Name,
			Value:       r.value,
			Color:       colors[r.column],
			StackOrder:  total - 1 - r.column,
			CellID:      r.date.CellID(),
			Role:        col.Role,
			Format:      col.Format,
			Identity:    deps.Identities.CategoryIdentity(categoryIndex[r.date], canonical, col.Name),
		})
	}

	tooltips := lo.FilterMap(t.Columns, func(c Column, _ int) (string, bool) {
		return c.Name, c.Role == RoleTooltip
	})
	sort.Strings(tooltips)

	return Dataset{
		Points:         points,
		Metrics:        metrics,
		TooltipColumns: tooltips,
		Dates:          dates,
	}
}

// resolveColor は設定の上書き色があればそれを、なければパレットの色を返します。
func resolveColor(s Settings, colors ColorResolver, name string) string {
	if c, ok := s.MetricColors[name]; ok && c != "" {
		return c
	}
	return colors.Color(name)
}

// FilterLegend は表示期間内に積み上げメトリクスのデータを持つ列だけを残します。
func FilterLegend(points []DataPoint, metrics []MetricDescriptor, r DateRange) []MetricDescriptor {
	drawn := make(map[string]struct{})
	for _, p := range points {
		if p.Role == RoleMetric && r.Contains(p.Date) {
			drawn[p.Metric] = struct{}{}
		}
	}
	return lo.Filter(metrics, func(m MetricDescriptor, _ int) bool {
		_, ok := drawn[m.Name]
		return ok
	})
}
