package logging

import "github.com/rs/zerolog"

// DispatcherLogger adapts zerolog.Logger to the dispatcher.Logger interface.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger tags every record with component=dispatcher.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.log(zerolog.DebugLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.log(zerolog.InfoLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Warn(msg string, keysAndValues ...any) {
	l.log(zerolog.WarnLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) log(level zerolog.Level, msg string, keysAndValues []any) {
	ev := l.logger.WithLevel(level)
	if ev == nil {
		return
	}
	for key, value := range toFields(keysAndValues) {
		if err, ok := value.(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, value)
	}
	ev.Msg(msg)
}

// toFields converts key-value pairs to a map. Non-string keys and a trailing
// key without a value are dropped.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
