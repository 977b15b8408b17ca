package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/storage/memory"
)

func newTestReportService(t *testing.T) (*ReportService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewReportService(store, testConfig(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func seedFor(t *testing.T, store *memory.Store, email, date, spot string) {
	t.Helper()
	r := &domain.Reservation{ID: email + "|" + date, Email: email, Date: date, Spot: spot, CreatedAt: testNow}
	week := domain.WeekWindow{Start: date, End: date, Dates: []string{date}}
	require.NoError(t, store.CreateReservation(r, week, 99))
}

func TestWeeklyReport(t *testing.T) {
	svc, store := newTestReportService(t)

	// 可见周 2026-03-02 至 2026-03-06
	seedFor(t, store, "b@northhighland.com", "2026-03-03", "Parqueadero 57")
	seedFor(t, store, "b@northhighland.com", "2026-03-02", "Parqueadero 61")
	seedFor(t, store, "a@northhighland.com", "2026-03-02", "Parqueadero 57")
	seedFor(t, store, "c@northhighland.com", "2026-03-04", "Parqueadero 57")
	// 周外数据不计入
	seedFor(t, store, "a@northhighland.com", "2026-02-27", "Parqueadero 57")

	report, err := svc.Weekly()
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", report.WeekStart)
	assert.Equal(t, "2026-03-06", report.WeekEnd)
	require.Len(t, report.Report, 3)

	// 天数降序，相同天数按邮箱升序
	assert.Equal(t, "b@northhighland.com", report.Report[0].Email)
	assert.Equal(t, 2, report.Report[0].DaysCount)
	assert.Equal(t, "a@northhighland.com", report.Report[1].Email)
	assert.Equal(t, 1, report.Report[1].DaysCount)
	assert.Equal(t, "c@northhighland.com", report.Report[2].Email)

	// 明细按日期升序
	require.Len(t, report.Report[0].Reservations, 2)
	assert.Equal(t, "2026-03-02", report.Report[0].Reservations[0].Date)
	assert.Equal(t, "2026-03-03", report.Report[0].Reservations[1].Date)
}

func TestWeeklyReportEmpty(t *testing.T) {
	svc, _ := newTestReportService(t)

	report, err := svc.Weekly()
	require.NoError(t, err)
	assert.Empty(t, report.Report)
	assert.Equal(t, "2026-03-02", report.WeekStart)
}

func TestMonthlyCSV(t *testing.T) {
	svc, store := newTestReportService(t)

	// 2026 年 1 月 1 日是周四：1-2 号属于第 1 周，5-9 号属于第 2 周
	seedFor(t, store, "a@northhighland.com", "2026-01-02", "Parqueadero 57")
	seedFor(t, store, "a@northhighland.com", "2026-01-05", "Parqueadero 57")
	seedFor(t, store, "a@northhighland.com", "2026-01-06", "Parqueadero 57")
	seedFor(t, store, "b@northhighland.com", "2026-01-05", "Parqueadero 61")
	// 其它月份的数据不计入
	seedFor(t, store, "a@northhighland.com", "2026-02-02", "Parqueadero 57")

	filename, data, err := svc.MonthlyCSV(2026, time.January)
	require.NoError(t, err)

	assert.Equal(t, "parking-report-January-2026.csv", filename)

	expected := "Email,Week 1 Days,Week 2 Days,Total Days\n" +
		`"a@northhighland.com","1","2","3"` + "\n" +
		`"b@northhighland.com","0","1","1"`
	assert.Equal(t, expected, string(data))
}

func TestMonthlyCSVEmptyMonth(t *testing.T) {
	svc, _ := newTestReportService(t)

	filename, data, err := svc.MonthlyCSV(2026, time.April)
	require.NoError(t, err)
	assert.Equal(t, "parking-report-April-2026.csv", filename)

	// 没有数据时仍返回表头，至少包含第 1 周
	assert.Equal(t, "Email,Week 1 Days,Total Days", string(data))
}
