// Package audit records compliance events for support sessions.
package audit

import (
	"context"
	"time"

	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/logging"
)

// Activities recorded by the conversation layer.
const (
	ActivityChat        = "Chat"
	ActivityCaptchaPass = "Captcha Success"
)

// Sink receives audit events. Implementations must not block the caller on
// remote delivery.
type Sink interface {
	Record(activity, userText, agentText string)
}

// GatewaySink forwards audit entries to the record gateway in a detached
// goroutine. Delivery failures are logged and swallowed; auditing never
// interferes with the conversation.
type GatewaySink struct {
	client  *gateway.Client
	logger  *logging.Logger
	timeout time.Duration
}

// NewGatewaySink creates a sink backed by the record gateway.
func NewGatewaySink(client *gateway.Client, logger *logging.Logger) *GatewaySink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GatewaySink{
		client:  client,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

func (s *GatewaySink) Record(activity, userText, agentText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.client.LogAudit(ctx, activity, userText, agentText); err != nil {
			s.logger.Warn(logging.CategoryAudit, "record_failed", "audit entry not delivered", map[string]any{
				"activity": activity,
				"error":    err.Error(),
			})
		}
	}()
}

// NopSink discards all audit events.
type NopSink struct{}

func (NopSink) Record(activity, userText, agentText string) {}
