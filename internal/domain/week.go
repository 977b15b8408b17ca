package domain

import (
	"time"
)

// DateLayout 预订日期的统一格式。
const DateLayout = "2006-01-02"

// WeekWindow 当前可预订的可见周（周一至周五）。
type WeekWindow struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Dates []string `json:"dates"`
}

// VisibleDate 带星期标签的可见日期，用于前端展示。
type VisibleDate struct {
	Date string `json:"date"`
	Day  string `json:"day"`
}

// VisibleWeek 计算可见预订周。
//
// 规则：
//   - 周一至周四，以及周五 cutoverHour 点之前，窗口为本周的周一至周五；
//   - 周五 cutoverHour 点（含）之后、周六、周日，窗口切换到下一周。
//
// 周日按一周的第 7 天处理（time.Weekday 的周日为 0）。
func VisibleWeek(now time.Time, loc *time.Location, cutoverHour int) WeekWindow {
	local := now.In(loc)
	dow := int(local.Weekday()) // 0=周日 .. 6=周六
	effective := dow
	if effective == 0 {
		effective = 7
	}

	monday := local.AddDate(0, 0, -(effective - 1))
	if (dow == 5 && local.Hour() >= cutoverHour) || dow == 6 || dow == 0 {
		monday = monday.AddDate(0, 0, 7)
	}

	dates := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		dates = append(dates, monday.AddDate(0, 0, i).Format(DateLayout))
	}
	return WeekWindow{Start: dates[0], End: dates[4], Dates: dates}
}

// Contains 判断日期是否落在可见周内。
func (w WeekWindow) Contains(date string) bool {
	for _, d := range w.Dates {
		if d == date {
			return true
		}
	}
	return false
}

// Labeled 返回带星期标签的可见日期列表。
func (w WeekWindow) Labeled() []VisibleDate {
	out := make([]VisibleDate, 0, len(w.Dates))
	for _, d := range w.Dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			continue
		}
		out = append(out, VisibleDate{Date: d, Day: t.Weekday().String()})
	}
	return out
}

// CanCancelOn 判断预订日期当前是否允许取消。
//
// 未来日期总是允许；当天仅限本地时间 cutoffHour 点之前；过去日期不允许。
func CanCancelOn(dateStr string, now time.Time, loc *time.Location, cutoffHour int) bool {
	local := now.In(loc)
	today := local.Format(DateLayout)

	if dateStr > today {
		return true
	}
	if dateStr == today {
		return local.Hour() < cutoffHour
	}
	return false
}

// WeekOfMonth 计算日期在其月份内的周序号。
//
// 以当月 1 日的星期（周日记 0）作为偏移：week = ceil((day + offset - 1) / 7)。
func WeekOfMonth(date time.Time) int {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	adjusted := date.Day() + int(first.Weekday()) - 1
	return (adjusted + 6) / 7
}
