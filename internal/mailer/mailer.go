package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender 定义预订相关的外发邮件操作。
type Sender interface {
	SendReservationConfirmation(email, spot, date string) error
	SendCancellationCode(email, code, spot, date string) error
}

// SMTPSender 通过 SMTP 发送 HTML 邮件。
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender 创建 SMTP 邮件发送器。
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// SendReservationConfirmation 发送预订确认邮件。
func (s *SMTPSender) SendReservationConfirmation(email, spot, date string) error {
	body := fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
          <h2 style="color: #2563eb;">Parking Reservation Confirmed</h2>
          <p>Your parking spot has been successfully reserved:</p>
          <ul style="background: #f3f4f6; padding: 20px; border-radius: 8px;">
            <li><strong>Parking Spot:</strong> %s</li>
            <li><strong>Date:</strong> %s</li>
            <li><strong>Email:</strong> %s</li>
          </ul>
          <p>Please arrive on time and park only in your designated spot.</p>
          <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
          <p style="color: #6b7280; font-size: 12px;">
            This is an automated message from Reservation Boss. Please do not reply to this email.
          </p>
        </div>`, spot, date, email)

	return s.send(email, "Parking Reservation Confirmation - Reservation Boss", body)
}

// SendCancellationCode 发送取消验证码邮件。
func (s *SMTPSender) SendCancellationCode(email, code, spot, date string) error {
	body := fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
          <h2 style="color: #2563eb;">Cancellation Code</h2>
          <p>Use the following code to cancel your reservation:</p>
          <p style="background: #f3f4f6; padding: 20px; border-radius: 8px; font-size: 24px; letter-spacing: 4px; text-align: center;">
            <strong>%s</strong>
          </p>
          <ul>
            <li><strong>Parking Spot:</strong> %s</li>
            <li><strong>Date:</strong> %s</li>
          </ul>
          <p>This code will expire in 10 minutes. If you did not request it, you can ignore this email.</p>
          <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
          <p style="color: #6b7280; font-size: 12px;">
            This is an automated message from Reservation Boss. Please do not reply to this email.
          </p>
        </div>`, code, spot, date)

	return s.send(email, "Parking Cancellation Code - Reservation Boss", body)
}

func (s *SMTPSender) send(address, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", "Reservation Boss", s.from))
	m.SetHeader("To", address)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopSender 仅记录日志，不实际发送，用于未配置 SMTP 的环境。
type NoopSender struct {
	log *zap.Logger
}

// NewNoopSender 创建空实现的邮件发送器。
func NewNoopSender(log *zap.Logger) *NoopSender {
	return &NoopSender{log: log}
}

func (n *NoopSender) SendReservationConfirmation(email, spot, date string) error {
	n.log.Info("email sending disabled, skipping confirmation",
		zap.String("to", email),
		zap.String("spot", spot),
		zap.String("date", date))
	return nil
}

func (n *NoopSender) SendCancellationCode(email, _, spot, date string) error {
	n.log.Info("email sending disabled, skipping cancellation code",
		zap.String("to", email),
		zap.String("spot", spot),
		zap.String("date", date))
	return nil
}
