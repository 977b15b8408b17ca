package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// Options 数据库连接池配置。
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store 关系型数据库存储实现（PostgreSQL / MySQL，经由 GORM）。
type Store struct {
	db *gorm.DB

	// 验证码尝试计数保存在进程内：窗口短（验证码有效期量级），
	// 不值得为它引入额外的表。
	limitMu           sync.Mutex
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time
}

type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建 PostgreSQL 存储实例。
func NewStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), opts)
}

// NewMySQLStore 创建 MySQL 存储实例。
func NewMySQLStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn), opts)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例。
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true, // 唯一键冲突统一成 gorm.ErrDuplicatedKey
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	store := &Store{
		db:                db,
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构。
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Reservation{},
		&domain.CancellationCode{},
	)
}

// ========== Reservation Repository ==========

// CreateReservation 在一个串行化隔离级别的事务内检查不变量并写入预订。
//
// 唯一索引 (date, email) 与 (date, spot) 兜底并发插入；
// 周限额依赖串行化隔离保证读到的计数在提交前有效。
// 并发冲突（序列化失败或唯一键冲突）时重试一次，
// 让落败方在重跑的检查里拿到对应的业务错误。
func (s *Store) CreateReservation(reservation *domain.Reservation, week domain.WeekWindow, maxPerWeek int) error {
	err := s.createReservationTx(reservation, week, maxPerWeek)
	if isWriteConflict(err) {
		err = s.createReservationTx(reservation, week, maxPerWeek)
	}
	return translateConflict(err)
}

// isWriteConflict 判断错误是否为并发写冲突（可安全重跑事务）。
//
// PostgreSQL 序列化失败是 SQLSTATE 40001，MySQL 死锁是 1213；
// 唯一键冲突经 TranslateError 统一成 gorm.ErrDuplicatedKey。
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "Error 1213") ||
		strings.Contains(msg, "Duplicate entry")
}

// translateConflict 把重试后仍剩下的唯一键冲突换成对应的业务错误。
//
// 优先按驱动错误文本里的索引名区分；经 TranslateError 统一后
// 索引名已丢失时按 (date, spot) 冲突处理，(date, email) 的情形
// 会在重跑的检查里先被拦下。
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "uniq_reservations_date_email"):
		return storage.ErrDuplicateDayBooking
	case strings.Contains(msg, "uniq_reservations_date_spot"):
		return storage.ErrSpotTaken
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrSpotTaken
	default:
		return err
	}
}

func (s *Store) createReservationTx(reservation *domain.Reservation, week domain.WeekWindow, maxPerWeek int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64

		if err := tx.Model(&domain.Reservation{}).
			Where("date = ? AND email = ?", reservation.Date, reservation.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrDuplicateDayBooking
		}

		if err := tx.Model(&domain.Reservation{}).
			Where("date = ? AND spot = ?", reservation.Date, reservation.Spot).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrSpotTaken
		}

		if err := tx.Model(&domain.Reservation{}).
			Where("email = ? AND date >= ? AND date <= ?", reservation.Email, week.Start, week.End).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= maxPerWeek {
			return &storage.WeeklyLimitError{Limit: maxPerWeek, Count: int(count)}
		}

		return tx.Create(reservation).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// GetReservation 根据 ID 获取预订。
func (s *Store) GetReservation(id string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := s.db.Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// ListReservationsInRange 返回日期范围内的预订，按日期升序。
func (s *Store) ListReservationsInRange(start, end string) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := s.db.
		Where("date >= ? AND date <= ?", start, end).
		Order("date ASC, spot ASC").
		Find(&reservations).Error
	return reservations, err
}

// ListReservations 返回全部预订，按日期降序，最多 limit 条。
func (s *Store) ListReservations(limit int) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	query := s.db.Order("date DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&reservations).Error
	return reservations, err
}

// DeleteReservation 删除指定预订。
func (s *Store) DeleteReservation(id string) error {
	result := s.db.Where("id = ?", id).Delete(&domain.Reservation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrReservationNotFound
	}
	return nil
}

// DeleteReservationsBefore 删除 date 之前的全部预订，返回删除数量。
func (s *Store) DeleteReservationsBefore(date string) (int, error) {
	result := s.db.Where("date < ?", date).Delete(&domain.Reservation{})
	return int(result.RowsAffected), result.Error
}

// DeleteAllReservations 清空全部预订，返回删除数量。
func (s *Store) DeleteAllReservations() (int, error) {
	result := s.db.Where("1 = 1").Delete(&domain.Reservation{})
	return int(result.RowsAffected), result.Error
}

// ========== Cancellation Code Repository ==========

// SaveCancellationCode 保存取消验证码，同一预订覆盖旧记录。
func (s *Store) SaveCancellationCode(code *domain.CancellationCode) error {
	return s.db.Save(code).Error
}

// GetCancellationCode 获取预订对应的取消验证码。
func (s *Store) GetCancellationCode(reservationID string) (*domain.CancellationCode, error) {
	var code domain.CancellationCode
	err := s.db.Where("reservation_id = ?", reservationID).First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrCancellationCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

// DeleteCancellationCode 删除取消验证码。
func (s *Store) DeleteCancellationCode(reservationID string) error {
	return s.db.Where("reservation_id = ?", reservationID).Delete(&domain.CancellationCode{}).Error
}

// ========== Rate Limit Repository ==========

// IncrementRateLimit 增加限流计数。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	now := time.Now()
	if now.After(s.rateLimitsCleanup) {
		for k, entry := range s.rateLimits {
			if now.After(entry.ExpiresAt) {
				delete(s.rateLimits, k)
			}
		}
		s.rateLimitsCleanup = now.Add(5 * time.Minute)
	}

	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 获取限流计数。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// ResetRateLimit 清零限流计数。
func (s *Store) ResetRateLimit(key string) error {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	delete(s.rateLimits, key)
	return nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 健康检查。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
