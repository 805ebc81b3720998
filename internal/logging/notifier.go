package logging

import "go.uber.org/zap"

// Notifier records every user-facing notification in the service log.
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier returns a Notifier writing to logger; a nil logger discards everything.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger.Named("notifications")}
}

func (n *Notifier) Send(title, body string) {
	n.logger.Info("notification", zap.String("title", title), zap.String("body", body))
}

func (n *Notifier) SetBadgeCount(count int) {
	n.logger.Debug("badge count", zap.Int("count", count))
}
