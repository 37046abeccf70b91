package notify

import (
	"context"
	"log/slog"
)

// Sender delivers out-of-band messages to users: confirmation codes,
// password reset codes and SMS login codes. Implementations must not log
// the code or token bodies they deliver.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, phone, body string) error
}

// LogSender writes deliveries to the log instead of sending them. It is the
// default in development and in tests.
type LogSender struct {
	Logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{Logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.Logger.InfoContext(ctx, "email queued",
		"to", to,
		"subject", subject,
	)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, phone, body string) error {
	s.Logger.InfoContext(ctx, "sms queued",
		"phone", maskPhone(phone),
	)
	return nil
}

// maskPhone keeps the last two digits only.
func maskPhone(phone string) string {
	if len(phone) <= 2 {
		return "**"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i >= len(phone)-2 {
			masked[i] = phone[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}
