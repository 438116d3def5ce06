package transport

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/types"
)

// LogTransport logs emails instead of sending them.
type LogTransport struct {
	logger *zap.Logger
	// WithBody also logs the plain-text body.
	WithBody bool
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.Named("log-transport")}
}

// Name implements types.Transport.
func (lt *LogTransport) Name() string { return "log" }

// Send implements types.Transport.
func (lt *LogTransport) Send(_ context.Context, email types.Email) (types.SendReceipt, error) {
	start := time.Now()
	if err := validateEmail(email); err != nil {
		observe(lt.Name(), start, err)
		return types.SendReceipt{}, err
	}
	id := uuid.NewString()
	fields := []zap.Field{
		zap.String("message_id", id),
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
	}
	if lt.WithBody {
		fields = append(fields, zap.String("text", email.Text))
	}
	lt.logger.Info("Email", fields...)
	observe(lt.Name(), start, nil)
	return types.SendReceipt{MessageID: id}, nil
}
