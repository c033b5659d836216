package calendar

import (
	"time"
)

// DateRange は表示する期間（開始日と月数）です。
type DateRange struct {
	Start  Date
	Months int
}

// MonthDescriptor は表示対象の1ヶ月を表します。
type MonthDescriptor struct {
	Year  int
	Month time.Month
	// First は最初に表示される月かどうかを示します。
	First bool
}

// Index は0始まりの月インデックスを返します。
func (m MonthDescriptor) Index() int {
	return int(m.Month) - 1
}

// Contains は日付がこの月に含まれるかを返します。
func (m MonthDescriptor) Contains(d Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

// ResolveDateRange は設定と今日の日付から表示期間を決定します。
// 開始日は常にその月の1日に正規化されます。
func ResolveDateRange(c CalendarSettings, today time.Time) DateRange {
	now := DateOf(today)

	var start Date
	switch c.Mode {
	case ModeFixed:
		parsed, ok := ParseCanonicalDate(c.StartDate)
		if !ok {
			// 解析できない開始日は今日で代替する（エラーとしては扱わない）
			parsed = now
		}
		start = parsed.FirstOfMonth()
	default:
		// Relative と Yearly はどちらも今月から遡った月を起点にする
		start = now.AddMonths(-c.NumOfPreviousMonths)
	}

	return DateRange{Start: start, Months: monthCount(c)}
}

func monthCount(c CalendarSettings) int {
	switch c.Mode {
	case ModeFixed:
		return c.NumOfMonths
	case ModeRelative:
		return c.NumOfPreviousMonths + c.NumOfFollowingMonths
	default:
		return 12
	}
}

// End は最後に表示される月の翌月1日を返します。
func (r DateRange) End() Date {
	return r.Start.AddMonths(r.Months)
}

// Contains は日付が [Start, End) に含まれるかを返します。
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && d.Before(r.End())
}

// MonthList は表示する月を順に返します。
func (r DateRange) MonthList() []MonthDescriptor {
	if r.Months <= 0 {
		return nil
	}
	months := make([]MonthDescriptor, 0, r.Months)
	for i := range r.Months {
		d := r.Start.AddMonths(i)
		months = append(months, MonthDescriptor{
			Year:  d.Year,
			Month: d.Month,
			First: i == 0,
		})
	}
	return months
}
