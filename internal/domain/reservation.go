package domain

import (
	"time"
)

// Reservation 表示一条车位预订的业务实体。
//
// Date 采用 "YYYY-MM-DD" 字符串存储，按字典序比较即可完成日期范围查询。
// (date, email) 与 (date, spot) 两组唯一索引在数据库层兜底预订不变量。
type Reservation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"type:varchar(255);index;uniqueIndex:uniq_reservations_date_email,priority:2"`
	Date      string    `json:"date" gorm:"type:varchar(10);uniqueIndex:uniq_reservations_date_email,priority:1;uniqueIndex:uniq_reservations_date_spot,priority:1"`
	Spot      string    `json:"spot" gorm:"type:varchar(64);uniqueIndex:uniq_reservations_date_spot,priority:2"`
	CreatedAt time.Time `json:"createdAt"`
}

// CancellationCode 表示一次取消请求生成的验证码。
//
// 以预订 ID 为主键，同一预订重复请求验证码会覆盖旧记录。
// 验证码只通过邮件下发，任何 API 响应都不携带。
type CancellationCode struct {
	ReservationID string    `json:"reservationId" gorm:"primaryKey;type:varchar(36)"`
	Code          string    `json:"-" gorm:"type:varchar(6)"`
	Email         string    `json:"email" gorm:"type:varchar(255)"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Expired 判断验证码在给定时刻是否已过期。
func (c *CancellationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ReservationDay 周报中单条预订的日期与车位。
type ReservationDay struct {
	Date string `json:"date"`
	Spot string `json:"spot"`
}

// UserWeeklyStats 周报中单个用户的统计行。
type UserWeeklyStats struct {
	Email        string           `json:"email"`
	DaysCount    int              `json:"daysCount"`
	Reservations []ReservationDay `json:"reservations"`
}

// WeeklyReport 当前可见周的出勤报表。
type WeeklyReport struct {
	WeekStart string            `json:"weekStart"`
	WeekEnd   string            `json:"weekEnd"`
	Report    []UserWeeklyStats `json:"report"`
}
