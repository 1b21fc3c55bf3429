package mapping

import "go.uber.org/zap"

var (
	opsLogger   *zap.SugaredLogger
	diagLogger  *zap.SugaredLogger
	traceLogger *zap.SugaredLogger
)

// SetLogger routes the package's three logging streams to l: ops at warn,
// diag at info, trace at debug. Pass nil to silence the package.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		opsLogger, diagLogger, traceLogger = nil, nil, nil
		return
	}
	l = l.Named("mapping")
	opsLogger, diagLogger, traceLogger = l, l, l
}

// opsf logs to the ops stream (actionable warnings, dropped input).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Warnf(format, args...)
	}
}

// diagf logs to the diag stream (per-build summaries, tuning context).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Infof(format, args...)
	}
}

// tracef logs to the trace stream (per-scan telemetry).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Debugf(format, args...)
	}
}
