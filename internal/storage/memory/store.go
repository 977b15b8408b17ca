package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

// Store 使用内存保存预订与取消验证码，主要用于开发验证与测试。
//
// 所有写路径都在同一把互斥锁内完成，CreateReservation 的
// 不变量检查与插入因此天然是串行化的。
type Store struct {
	mu           sync.RWMutex
	reservations map[string]*domain.Reservation // id -> reservation
	byDateEmail  map[string]string              // date|email -> id
	byDateSpot   map[string]string              // date|spot -> id
	codes        map[string]*domain.CancellationCode

	// 速率限制相关
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time // 下次清理过期速率限制的时间
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		reservations:      make(map[string]*domain.Reservation),
		byDateEmail:       make(map[string]string),
		byDateSpot:        make(map[string]string),
		codes:             make(map[string]*domain.CancellationCode),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}
}

func dateEmailKey(date, email string) string { return date + "|" + email }
func dateSpotKey(date, spot string) string   { return date + "|" + spot }

// CreateReservation 原子地检查预订不变量并写入。
func (s *Store) CreateReservation(reservation *domain.Reservation, week domain.WeekWindow, maxPerWeek int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDateEmail[dateEmailKey(reservation.Date, reservation.Email)]; ok {
		return storage.ErrDuplicateDayBooking
	}
	if _, ok := s.byDateSpot[dateSpotKey(reservation.Date, reservation.Spot)]; ok {
		return storage.ErrSpotTaken
	}

	count := 0
	for _, r := range s.reservations {
		if r.Email == reservation.Email && r.Date >= week.Start && r.Date <= week.End {
			count++
		}
	}
	if count >= maxPerWeek {
		return &storage.WeeklyLimitError{Limit: maxPerWeek, Count: count}
	}

	stored := *reservation
	s.reservations[stored.ID] = &stored
	s.byDateEmail[dateEmailKey(stored.Date, stored.Email)] = stored.ID
	s.byDateSpot[dateSpotKey(stored.Date, stored.Spot)] = stored.ID
	return nil
}

// GetReservation 根据 ID 获取预订。
func (s *Store) GetReservation(id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, storage.ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

// ListReservationsInRange 返回日期范围内的预订，按日期升序。
func (s *Store) ListReservationsInRange(start, end string) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	for _, r := range s.reservations {
		if r.Date >= start && r.Date <= end {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Spot < result[j].Spot
	})
	return result, nil
}

// ListReservations 返回全部预订，按日期降序（最新在前），最多 limit 条。
func (s *Store) ListReservations(limit int) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteReservation 删除指定预订。
func (s *Store) DeleteReservation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return storage.ErrReservationNotFound
	}
	s.deleteReservationLocked(id, r)
	return nil
}

// DeleteReservationsBefore 删除 date 之前的全部预订，返回删除数量。
func (s *Store) DeleteReservationsBefore(date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, r := range s.reservations {
		if r.Date < date {
			s.deleteReservationLocked(id, r)
			count++
		}
	}
	return count, nil
}

// DeleteAllReservations 清空全部预订，返回删除数量。
func (s *Store) DeleteAllReservations() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.reservations)
	s.reservations = make(map[string]*domain.Reservation)
	s.byDateEmail = make(map[string]string)
	s.byDateSpot = make(map[string]string)
	return count, nil
}

// deleteReservationLocked 删除预订及其索引，调用方必须持有写锁。
func (s *Store) deleteReservationLocked(id string, r *domain.Reservation) {
	delete(s.reservations, id)
	delete(s.byDateEmail, dateEmailKey(r.Date, r.Email))
	delete(s.byDateSpot, dateSpotKey(r.Date, r.Spot))
}

// SaveCancellationCode 保存取消验证码，同一预订覆盖旧记录。
func (s *Store) SaveCancellationCode(code *domain.CancellationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *code
	s.codes[stored.ReservationID] = &stored
	return nil
}

// GetCancellationCode 获取预订对应的取消验证码。
func (s *Store) GetCancellationCode(reservationID string) (*domain.CancellationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[reservationID]
	if !ok {
		return nil, storage.ErrCancellationCodeNotFound
	}
	copied := *code
	return &copied, nil
}

// DeleteCancellationCode 删除取消验证码。
func (s *Store) DeleteCancellationCode(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, reservationID)
	return nil
}

// IncrementRateLimit 增加限流计数，窗口到期后重新开始。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.cleanupRateLimitsLocked(now)

	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{Count: 0, ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 获取限流计数。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// ResetRateLimit 清零限流计数。
func (s *Store) ResetRateLimit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rateLimits, key)
	return nil
}

// cleanupRateLimitsLocked 周期性清理过期的限流条目，调用方必须持有写锁。
func (s *Store) cleanupRateLimitsLocked(now time.Time) {
	if now.Before(s.rateLimitsCleanup) {
		return
	}
	for key, entry := range s.rateLimits {
		if now.After(entry.ExpiresAt) {
			delete(s.rateLimits, key)
		}
	}
	s.rateLimitsCleanup = now.Add(5 * time.Minute)
}

// Close 关闭存储（内存实现无资源需要释放）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	return nil
}
