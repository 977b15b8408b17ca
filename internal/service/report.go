package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// ReportService 生成管理端的考勤报表。
type ReportService struct {
	store       storage.ReservationRepository
	log         *zap.Logger
	loc         *time.Location
	cutoverHour int

	now func() time.Time // 可注入的时钟，测试用
}

// NewReportService 创建报表服务。
func NewReportService(store storage.ReservationRepository, cfg *config.Config, log *zap.Logger) *ReportService {
	return &ReportService{
		store:       store,
		log:         log,
		loc:         cfg.Location(),
		cutoverHour: cfg.Reservation.CutoverHour,
		now:         time.Now,
	}
}

// Weekly 汇总当前可见周内每人的出勤天数与预订明细。
//
// 结果按天数降序排列，天数相同时按邮箱字典序。
func (s *ReportService) Weekly() (*domain.WeeklyReport, error) {
	week := domain.VisibleWeek(s.now().In(s.loc), s.loc, s.cutoverHour)

	reservations, err := s.store.ListReservationsInRange(week.Start, week.End)
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string]*domain.UserWeeklyStats)
	days := make(map[string]map[string]struct{})
	for i := range reservations {
		r := &reservations[i]
		stats, ok := byEmail[r.Email]
		if !ok {
			stats = &domain.UserWeeklyStats{Email: r.Email}
			byEmail[r.Email] = stats
			days[r.Email] = make(map[string]struct{})
		}
		stats.Reservations = append(stats.Reservations, domain.ReservationDay{Date: r.Date, Spot: r.Spot})
		days[r.Email][r.Date] = struct{}{}
	}

	report := make([]domain.UserWeeklyStats, 0, len(byEmail))
	for email, stats := range byEmail {
		stats.DaysCount = len(days[email])
		sort.Slice(stats.Reservations, func(i, j int) bool {
			return stats.Reservations[i].Date < stats.Reservations[j].Date
		})
		report = append(report, *stats)
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].DaysCount != report[j].DaysCount {
			return report[i].DaysCount > report[j].DaysCount
		}
		return report[i].Email < report[j].Email
	})

	return &domain.WeeklyReport{
		WeekStart: week.Start,
		WeekEnd:   week.End,
		Report:    report,
	}, nil
}

// MonthlyCSV 生成指定月份的出勤 CSV 报表。
//
// 每行一个邮箱，按月内周拆分出勤天数，行按总天数降序、邮箱升序排列。
// 返回下载文件名与 CSV 内容。
func (s *ReportService) MonthlyCSV(year int, month time.Month) (string, []byte, error) {
	start := fmt.Sprintf("%04d-%02d-01", year, int(month))
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	end := fmt.Sprintf("%04d-%02d-%02d", year, int(month), lastDay)

	reservations, err := s.store.ListReservationsInRange(start, end)
	if err != nil {
		return "", nil, err
	}

	// 邮箱 -> 周序号 -> 出勤日期集合
	weeks := make(map[string]map[int]map[string]struct{})
	maxWeek := 1
	for i := range reservations {
		r := &reservations[i]
		d, err := time.Parse(domain.DateLayout, r.Date)
		if err != nil {
			continue
		}
		week := domain.WeekOfMonth(d)
		if week > maxWeek {
			maxWeek = week
		}
		if weeks[r.Email] == nil {
			weeks[r.Email] = make(map[int]map[string]struct{})
		}
		if weeks[r.Email][week] == nil {
			weeks[r.Email][week] = make(map[string]struct{})
		}
		weeks[r.Email][week][r.Date] = struct{}{}
	}

	type reportRow struct {
		email string
		days  []int
		total int
	}
	rows := make([]reportRow, 0, len(weeks))
	for email, byWeek := range weeks {
		row := reportRow{email: email, days: make([]int, maxWeek)}
		for week := 1; week <= maxWeek; week++ {
			count := len(byWeek[week])
			row.days[week-1] = count
			row.total += count
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		return rows[i].email < rows[j].email
	})

	var b strings.Builder
	b.WriteString("Email")
	for week := 1; week <= maxWeek; week++ {
		fmt.Fprintf(&b, ",Week %d Days", week)
	}
	b.WriteString(",Total Days")
	for _, row := range rows {
		b.WriteByte('\n')
		b.WriteString(csvCell(row.email))
		for _, count := range row.days {
			b.WriteByte(',')
			b.WriteString(csvCell(fmt.Sprintf("%d", count)))
		}
		b.WriteByte(',')
		b.WriteString(csvCell(fmt.Sprintf("%d", row.total)))
	}

	filename := fmt.Sprintf("parking-report-%s-%d.csv", month.String(), year)
	return filename, []byte(b.String()), nil
}

// csvCell 将单元格包在双引号内，内部引号按 CSV 规则转义。
func csvCell(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
