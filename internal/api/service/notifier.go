package service

import (
	"context"

	"github.com/rs/zerolog"
)

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Notification is a transient user-facing message (a toast on the canvas).
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	NodeID  string            `json:"nodeId,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (slf NotifierFunc) Notify(ctx context.Context, n Notification) { slf(ctx, n) }

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) LogNotifier {
	return LogNotifier{logger: logger}
}

func (slf LogNotifier) Notify(_ context.Context, n Notification) {
	ev := slf.logger.Info()
	if n.Level == LevelError {
		ev = slf.logger.Warn()
	}
	ev.Str("notifyLevel", string(n.Level)).Str("nodeId", n.NodeID).Msg(n.Message)
}

// MultiNotifier fans a notification out to every sink.
type MultiNotifier []Notifier

func (slf MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, sink := range slf {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}
