package mailer

import (
	"github.com/fjfoyain/reservation-boss/internal/monitoring"
)

// InstrumentedSender 包装 Sender 并记录邮件发送指标。
type InstrumentedSender struct {
	inner   Sender
	metrics *monitoring.Metrics
}

// NewInstrumentedSender 创建带指标记录的发送器。
func NewInstrumentedSender(inner Sender, metrics *monitoring.Metrics) *InstrumentedSender {
	return &InstrumentedSender{inner: inner, metrics: metrics}
}

// SendReservationConfirmation 发送预订确认邮件并记录结果。
func (s *InstrumentedSender) SendReservationConfirmation(email, spot, date string) error {
	err := s.inner.SendReservationConfirmation(email, spot, date)
	s.record(err)
	return err
}

// SendCancellationCode 发送取消验证码邮件并记录结果。
func (s *InstrumentedSender) SendCancellationCode(email, code, spot, date string) error {
	err := s.inner.SendCancellationCode(email, code, spot, date)
	s.record(err)
	return err
}

func (s *InstrumentedSender) record(err error) {
	if err != nil {
		s.metrics.RecordEmailFailed()
		return
	}
	s.metrics.RecordEmailSent()
}
