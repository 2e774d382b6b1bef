// Package message implements the wire model shared by the broadcaster,
// sessions and pool: message kinds, the JSON frame format, connection
// filters and the validation rules in front of both.
package message

// Kind identifies the shape of a Message's payload and, for update kinds,
// which target fields are meaningful.
type Kind string

const (
	KindJobStatusUpdate    Kind = "job_status_update"
	KindJobProgressUpdate  Kind = "job_progress_update"
	KindLogMessage         Kind = "job_log_message"
	KindMetricsUpdate      Kind = "job_metrics_update"
	KindSystemNotification Kind = "system_notification"
	KindConnectionAck      Kind = "connection_ack"
	KindErrorMessage       Kind = "error_message"
)

// ValidKinds enumerates every wire-legal message type, in the order they
// appear in the wire-format description.
var ValidKinds = []Kind{
	KindJobStatusUpdate,
	KindJobProgressUpdate,
	KindLogMessage,
	KindMetricsUpdate,
	KindSystemNotification,
	KindConnectionAck,
	KindErrorMessage,
}

func (k Kind) valid() bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}

// LogLevel is the severity carried by LogMessage frames and matched
// against a session's filters.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

var validLevels = map[LogLevel]bool{
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
	LevelFatal: true,
}

func (l LogLevel) valid() bool {
	return validLevels[l]
}
