package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/cache"
	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/mailer"
	"github.com/fjfoyain/reservation-boss/internal/pool"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

var (
	// ErrMissingReservationFields 预订请求缺少必填字段
	ErrMissingReservationFields = errors.New("email, date and spot are required")
)

// adminListLimit 管理端预订列表的最大返回条数。
const adminListLimit = 500

// ReservationService 封装车位预订相关业务操作。
type ReservationService struct {
	store  storage.Store
	cache  cache.Cache
	mailer mailer.Sender
	pool   *pool.WorkerPool
	log    *zap.Logger

	emails      *domain.EmailValidator
	spots       *domain.SpotSet
	loc         *time.Location
	cutoverHour int
	maxPerWeek  int
	cacheTTL    time.Duration

	now func() time.Time // 可注入的时钟，测试用
}

// NewReservationService 创建预订业务服务。
func NewReservationService(store storage.Store, c cache.Cache, sender mailer.Sender, workers *pool.WorkerPool, cfg *config.Config, log *zap.Logger) *ReservationService {
	return &ReservationService{
		store:       store,
		cache:       c,
		mailer:      sender,
		pool:        workers,
		log:         log,
		emails:      domain.NewEmailValidator(cfg.Reservation.AllowedDomain),
		spots:       domain.NewSpotSet(cfg.Reservation.Spots),
		loc:         cfg.Location(),
		cutoverHour: cfg.Reservation.CutoverHour,
		maxPerWeek:  cfg.Reservation.MaxPerWeek,
		cacheTTL:    cfg.Cache.TTL,
		now:         time.Now,
	}
}

// ReserveInput 定义创建预订所需的输入。
type ReserveInput struct {
	Email string
	Date  string
	Spot  string
}

// Reserve 创建一条预订。
//
// 校验顺序：必填字段、邮箱域名与格式、日期在可见周内、车位有效；
// 唯一性与周限额检查由存储层在单个原子操作内完成。
func (s *ReservationService) Reserve(input ReserveInput) (*domain.Reservation, error) {
	if input.Email == "" || input.Date == "" || input.Spot == "" {
		return nil, ErrMissingReservationFields
	}

	email, err := s.emails.Normalize(input.Email)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateDate(input.Date); err != nil {
		return nil, err
	}

	week := s.VisibleWeek()
	if !week.Contains(input.Date) {
		return nil, domain.ErrDateOutsideWeek
	}

	if err := s.spots.Validate(input.Spot); err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ID:        uuid.NewString(),
		Email:     email,
		Date:      input.Date,
		Spot:      input.Spot,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.CreateReservation(reservation, week, s.maxPerWeek); err != nil {
		return nil, err
	}

	s.log.Info("reservation created",
		zap.String("id", reservation.ID),
		zap.String("email", email),
		zap.String("date", reservation.Date),
		zap.String("spot", reservation.Spot))

	s.invalidateWeekCaches(week)
	s.dispatch(func() {
		if err := s.mailer.SendReservationConfirmation(reservation.Email, reservation.Spot, reservation.Date); err != nil {
			s.log.Warn("confirmation email failed",
				zap.String("email", reservation.Email),
				zap.Error(err))
		}
	})

	return reservation, nil
}

// VisibleWeek 返回当前可见的工作周窗口。
func (s *ReservationService) VisibleWeek() domain.WeekWindow {
	return domain.VisibleWeek(s.now().In(s.loc), s.loc, s.cutoverHour)
}

// VisibleDates 返回可见周的日期及星期标签。
func (s *ReservationService) VisibleDates() []domain.VisibleDate {
	return s.VisibleWeek().Labeled()
}

// Spots 返回可预订的车位列表。
func (s *ReservationService) Spots() []string {
	return s.spots.List()
}

// WeekReservations 返回指定范围内的预订列表，范围为空时使用可见周。
func (s *ReservationService) WeekReservations(start, end string) ([]domain.Reservation, error) {
	start, end, err := s.resolveRange(start, end)
	if err != nil {
		return nil, err
	}

	key := weekCacheKey(start, end)
	if data, ok := s.cache.Get(key); ok {
		var cached []domain.Reservation
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	reservations, err := s.store.ListReservationsInRange(start, end)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(reservations); err == nil {
		s.cache.Set(key, data, s.cacheTTL)
	}
	return reservations, nil
}

// WeekSummary 返回 日期 -> 车位 -> 邮箱 的占用汇总，空车位为 nil。
func (s *ReservationService) WeekSummary(start, end string) (map[string]map[string]*string, error) {
	start, end, err := s.resolveRange(start, end)
	if err != nil {
		return nil, err
	}

	key := summaryCacheKey(start, end)
	if data, ok := s.cache.Get(key); ok {
		var cached map[string]map[string]*string
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	reservations, err := s.store.ListReservationsInRange(start, end)
	if err != nil {
		return nil, err
	}

	dates, err := enumerateDates(start, end)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]map[string]*string, len(dates))
	for _, date := range dates {
		row := make(map[string]*string, len(s.spots.List()))
		for _, spot := range s.spots.List() {
			row[spot] = nil
		}
		summary[date] = row
	}
	for i := range reservations {
		r := &reservations[i]
		if row, ok := summary[r.Date]; ok {
			email := r.Email
			row[r.Spot] = &email
		}
	}

	if data, err := json.Marshal(summary); err == nil {
		s.cache.Set(key, data, s.cacheTTL)
	}
	return summary, nil
}

// ListAll 返回全部预订（最新在前），供管理端使用。
func (s *ReservationService) ListAll() ([]domain.Reservation, error) {
	return s.store.ListReservations(adminListLimit)
}

// Release 删除指定预订并使周视图缓存失效。
func (s *ReservationService) Release(id string) error {
	if err := s.store.DeleteReservation(id); err != nil {
		return err
	}

	s.log.Info("reservation released", zap.String("id", id))
	s.cache.Invalidate("week:")
	s.cache.Invalidate("summary:")
	return nil
}

// ClearAll 删除全部预订并清空缓存，返回删除数量。
func (s *ReservationService) ClearAll() (int, error) {
	count, err := s.store.DeleteAllReservations()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("all reservations deleted", zap.Int("count", count))
		s.cache.Clear()
	}
	return count, nil
}

// PurgeOld 删除可见周之前的全部预订，返回删除数量与窗口起始日。
func (s *ReservationService) PurgeOld() (int, string, error) {
	start := s.VisibleWeek().Start
	count, err := s.store.DeleteReservationsBefore(start)
	if err != nil {
		return 0, start, err
	}
	if count > 0 {
		s.log.Info("old reservations purged",
			zap.Int("count", count),
			zap.String("before", start))
		s.cache.Clear()
	}
	return count, start, nil
}

// resolveRange 校验并补全日期范围，缺省使用可见周。
func (s *ReservationService) resolveRange(start, end string) (string, string, error) {
	if start == "" || end == "" {
		week := s.VisibleWeek()
		return week.Start, week.End, nil
	}
	if err := domain.ValidateDate(start); err != nil {
		return "", "", err
	}
	if err := domain.ValidateDate(end); err != nil {
		return "", "", err
	}
	return start, end, nil
}

// invalidateWeekCaches 使指定周的列表与汇总缓存失效。
func (s *ReservationService) invalidateWeekCaches(week domain.WeekWindow) {
	s.cache.Invalidate(weekCacheKey(week.Start, week.End))
	s.cache.Invalidate(summaryCacheKey(week.Start, week.End))
}

// dispatch 将任务交给协程池执行，未配置协程池时同步执行。
func (s *ReservationService) dispatch(task func()) {
	if s.pool == nil {
		task()
		return
	}
	if !s.pool.TrySubmit(task) {
		go task()
	}
}

func weekCacheKey(start, end string) string {
	return fmt.Sprintf("week:%s:%s", start, end)
}

func summaryCacheKey(start, end string) string {
	return fmt.Sprintf("summary:%s:%s", start, end)
}

// enumerateDates 枚举闭区间内的每个日期。
func enumerateDates(start, end string) ([]string, error) {
	from, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	to, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}

	dates := make([]string, 0, 7)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(domain.DateLayout))
	}
	return dates, nil
}
