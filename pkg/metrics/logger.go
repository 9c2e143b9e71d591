package metrics

import "log/slog"

// LoggerObserver mirrors every metrics event into structured logs.
type LoggerObserver struct {
	logger *slog.Logger
}

func NewLoggerObserver(logger *slog.Logger) *LoggerObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerObserver{logger: logger}
}

func (o *LoggerObserver) RecordEvent(ev MetricsEvent) {
	attrs := make([]any, 0, 2+2*len(ev.Tags))
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	o.logger.Debug(ev.Name, attrs...)
}
