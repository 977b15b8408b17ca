package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/cache"
	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/domain"
	"github.com/fjfoyain/reservation-boss/internal/mailer"
	"github.com/fjfoyain/reservation-boss/internal/pool"
	"github.com/fjfoyain/reservation-boss/internal/storage"
)

var (
	// ErrMissingCancellationFields 请求验证码缺少必填字段
	ErrMissingCancellationFields = errors.New("reservation id and email are required")
	// ErrMissingVerificationFields 验证取消缺少必填字段
	ErrMissingVerificationFields = errors.New("reservation id and code are required")
	// ErrEmailMismatch 邮箱与预订不匹配
	ErrEmailMismatch = errors.New("email does not match reservation")
	// ErrCancellationWindowClosed 已过可取消时间
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
	// ErrInvalidOrExpiredRequest 取消请求不存在或已失效
	ErrInvalidOrExpiredRequest = errors.New("invalid or expired cancellation request")
	// ErrCodeExpired 验证码已过期
	ErrCodeExpired = errors.New("cancellation code expired")
	// ErrInvalidCode 验证码不正确
	ErrInvalidCode = errors.New("invalid cancellation code")
	// ErrTooManyAttempts 验证尝试次数过多
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

// CancellationService 封装两步取消流程：请求验证码、验证并取消。
type CancellationService struct {
	store    storage.Store
	cache    cache.Cache
	mailer   mailer.Sender
	pool     *pool.WorkerPool
	attempts storage.RateLimitRepository
	log      *zap.Logger

	loc         *time.Location
	cutoffHour  int
	codeTTL     time.Duration
	maxAttempts int

	now func() time.Time // 可注入的时钟，测试用
}

// NewCancellationService 创建取消流程服务。
func NewCancellationService(store storage.Store, c cache.Cache, sender mailer.Sender, workers *pool.WorkerPool, cfg *config.Config, log *zap.Logger) *CancellationService {
	return &CancellationService{
		store:       store,
		cache:       c,
		mailer:      sender,
		pool:        workers,
		attempts:    store,
		log:         log,
		loc:         cfg.Location(),
		cutoffHour:  cfg.Reservation.CancelCutoffHour,
		codeTTL:     cfg.Cancellation.CodeTTL,
		maxAttempts: cfg.Cancellation.MaxAttempts,
		now:         time.Now,
	}
}

// UseAttemptCounter 替换验证尝试计数的存储后端。
//
// 多实例部署时计数器必须共享，选用 redis 缓存时由启动逻辑
// 把计数切到 redis 上。
func (s *CancellationService) UseAttemptCounter(counter storage.RateLimitRepository) {
	if counter != nil {
		s.attempts = counter
	}
}

// RequestCode 校验取消资格并向预订邮箱发送 6 位验证码。
//
// 重复请求会覆盖旧验证码并重置有效期。
func (s *CancellationService) RequestCode(reservationID, email string) error {
	if reservationID == "" || email == "" {
		return ErrMissingCancellationFields
	}

	reservation, err := s.store.GetReservation(reservationID)
	if err != nil {
		return err
	}

	if !strings.EqualFold(reservation.Email, strings.TrimSpace(email)) {
		return ErrEmailMismatch
	}

	if !domain.CanCancelOn(reservation.Date, s.now(), s.loc, s.cutoffHour) {
		return ErrCancellationWindowClosed
	}

	secret, err := generateCode()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	code := &domain.CancellationCode{
		ReservationID: reservationID,
		Code:          secret,
		Email:         reservation.Email,
		ExpiresAt:     now.Add(s.codeTTL),
		CreatedAt:     now,
	}
	if err := s.store.SaveCancellationCode(code); err != nil {
		return err
	}

	// 新验证码意味着新的尝试窗口，旧计数不再算数
	if err := s.attempts.ResetRateLimit("cancel:" + reservationID); err != nil {
		s.log.Warn("failed to reset attempt counter",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}

	s.log.Info("cancellation code issued",
		zap.String("reservation_id", reservationID),
		zap.String("email", reservation.Email))

	spot, date := reservation.Spot, reservation.Date
	to := reservation.Email
	s.dispatch(func() {
		if err := s.mailer.SendCancellationCode(to, secret, spot, date); err != nil {
			s.log.Warn("cancellation code email failed",
				zap.String("email", to),
				zap.Error(err))
		}
	})

	return nil
}

// VerifyAndCancel 验证验证码并删除预订。
//
// 错误顺序：尝试次数超限、请求不存在、验证码过期（删除验证码）、
// 验证码不匹配（保留验证码，允许重试）。
func (s *CancellationService) VerifyAndCancel(reservationID, code string) error {
	if reservationID == "" || code == "" {
		return ErrMissingVerificationFields
	}

	// 计数失败不阻断流程，计数器只是防暴力破解的辅助手段
	attempts, err := s.attempts.IncrementRateLimit("cancel:"+reservationID, s.codeTTL)
	if err != nil {
		s.log.Warn("attempt counter unavailable", zap.Error(err))
	} else if attempts > int64(s.maxAttempts) {
		return ErrTooManyAttempts
	}

	stored, err := s.store.GetCancellationCode(reservationID)
	if err != nil {
		if errors.Is(err, storage.ErrCancellationCodeNotFound) {
			return ErrInvalidOrExpiredRequest
		}
		return err
	}

	if stored.Expired(s.now().UTC()) {
		if err := s.store.DeleteCancellationCode(reservationID); err != nil {
			s.log.Warn("failed to delete expired code", zap.Error(err))
		}
		return ErrCodeExpired
	}

	if stored.Code != strings.TrimSpace(code) {
		return ErrInvalidCode
	}

	if err := s.store.DeleteReservation(reservationID); err != nil && !errors.Is(err, storage.ErrReservationNotFound) {
		return err
	}
	if err := s.store.DeleteCancellationCode(reservationID); err != nil {
		s.log.Warn("failed to delete used code", zap.Error(err))
	}

	s.log.Info("reservation cancelled", zap.String("reservation_id", reservationID))

	s.cache.Invalidate("week:")
	s.cache.Invalidate("summary:")
	return nil
}

// generateCode 用加密随机源生成 6 位数字验证码。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate cancellation code: %w", err)
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}

// dispatch 将任务交给协程池执行，未配置协程池时同步执行。
func (s *CancellationService) dispatch(task func()) {
	if s.pool == nil {
		task()
		return
	}
	if !s.pool.TrySubmit(task) {
		go task()
	}
}
