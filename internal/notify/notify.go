package notify

import (
	"time"

	"github.com/rs/zerolog"
)

// Severity categorizes a notification for whoever renders it.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySync    Severity = "sync"
)

// DefaultDuration is used when the caller passes a non-positive duration.
const DefaultDuration = 3 * time.Second

// Notifier is the sink the engine reports user-facing outcomes to. It must be
// safe to call when no visual surface is mounted.
type Notifier interface {
	Notify(message string, severity Severity, duration time.Duration)
}

// LogNotifier is the always-available fallback sink: notifications become
// structured log lines.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(message string, severity Severity, duration time.Duration) {
	if n == nil || n.logger == nil {
		return
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	event := n.logger.Info()
	switch severity {
	case SeverityError:
		event = n.logger.Error()
	case SeverityWarning:
		event = n.logger.Warn()
	}
	event.Str("severity", string(severity)).Dur("duration", duration).Msg(message)
}

// Fanout forwards each notification to every sink.
type Fanout []Notifier

func (f Fanout) Notify(message string, severity Severity, duration time.Duration) {
	for _, n := range f {
		if n != nil {
			n.Notify(message, severity, duration)
		}
	}
}
