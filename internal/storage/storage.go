package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/fjfoyain/reservation-boss/internal/domain"
)

var (
	// ErrReservationNotFound 预订不存在错误
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrDuplicateDayBooking 同一用户当天已有预订错误
	ErrDuplicateDayBooking = errors.New("duplicate booking for this day")
	// ErrSpotTaken 车位当天已被占用错误
	ErrSpotTaken = errors.New("spot already reserved for this date")
	// ErrWeeklyLimitExceeded 超出每周预订上限错误
	ErrWeeklyLimitExceeded = errors.New("weekly reservation limit exceeded")
	// ErrCancellationCodeNotFound 取消验证码不存在错误
	ErrCancellationCodeNotFound = errors.New("cancellation code not found")
)

// WeeklyLimitError 携带上限与当前计数的周限额错误，errors.Is 可匹配 ErrWeeklyLimitExceeded。
type WeeklyLimitError struct {
	Limit int
	Count int
}

func (e *WeeklyLimitError) Error() string {
	return fmt.Sprintf("weekly reservation limit exceeded: %d of %d used", e.Count, e.Limit)
}

func (e *WeeklyLimitError) Unwrap() error {
	return ErrWeeklyLimitExceeded
}

// ReservationRepository 定义预订数据存取操作。
type ReservationRepository interface {
	// CreateReservation 在单个原子事务内完成不变量检查并写入：
	// (date, email) 去重、(date, spot) 去重、可见周内计数不超过 maxPerWeek。
	// 冲突时按检查顺序返回 ErrDuplicateDayBooking、ErrSpotTaken 或 *WeeklyLimitError。
	CreateReservation(reservation *domain.Reservation, week domain.WeekWindow, maxPerWeek int) error
	GetReservation(id string) (*domain.Reservation, error)
	ListReservationsInRange(start, end string) ([]domain.Reservation, error) // 按日期升序
	ListReservations(limit int) ([]domain.Reservation, error)               // 按日期降序（最新在前）
	DeleteReservation(id string) error
	DeleteReservationsBefore(date string) (int, error) // 删除 date 之前的预订（不含 date 本身），返回删除数量
	DeleteAllReservations() (int, error)
}

// CancellationCodeRepository 定义取消验证码存取操作。
type CancellationCodeRepository interface {
	SaveCancellationCode(code *domain.CancellationCode) error // 同一预订重复保存会覆盖
	GetCancellationCode(reservationID string) (*domain.CancellationCode, error)
	DeleteCancellationCode(reservationID string) error
}

// RateLimitRepository 定义限流计数操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
	ResetRateLimit(key string) error
}

// Store 定义完整的存储接口。
type Store interface {
	ReservationRepository
	CancellationCodeRepository
	RateLimitRepository

	// 工具方法
	Close() error
	Health() error
}
