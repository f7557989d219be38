package webhook

import (
	"context"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/domain/notification"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// LogSink writes notifications to the log. Used when no webhook is configured.
type LogSink struct {
	logger *logger.Logger
}

var _ notification.Sink = (*LogSink)(nil)

// NewLogSink creates a log-only sink.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{logger: log.With(logger.Component("notify_log"))}
}

// Send logs n at info level.
func (s *LogSink) Send(_ context.Context, n notification.Notification) error {
	s.logger.Info("notification",
		logger.UserID(n.UserID),
		logger.String("type", string(n.Type)),
		logger.String("title", n.Title),
		logger.String("message", n.Message),
		logger.String("link", n.Link),
	)
	return nil
}

// NewSink returns the webhook client when a URL is configured and the log
// sink otherwise.
func NewSink(cfg config.NotificationConfig, log *logger.Logger) (notification.Sink, error) {
	if cfg.WebhookURL == "" {
		return NewLogSink(log), nil
	}
	c := ConfigFrom(cfg)
	c.Logger = log
	client, err := NewClient(c)
	if err != nil {
		return nil, err
	}
	return client, nil
}
