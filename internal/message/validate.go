package message

import (
	"regexp"

	"github.com/rclabs/etlmonitor/internal/errs"
)

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const maxJobIDLen = 100

// ValidateJobID enforces §6's jobId rule: non-empty, at most 100 chars,
// matching [A-Za-z0-9_-]+.
func ValidateJobID(id string) error {
	if id == "" {
		return errs.Wrapf(errs.ErrInvalidConfig, "jobId must not be empty")
	}
	if len(id) > maxJobIDLen {
		return errs.Wrapf(errs.ErrInvalidConfig, "jobId exceeds %d characters", maxJobIDLen)
	}
	if !jobIDPattern.MatchString(id) {
		return errs.Wrapf(errs.ErrInvalidConfig, "jobId %q contains invalid characters", id)
	}
	return nil
}

// ValidateLogLevel enforces §6's logLevel rule.
func ValidateLogLevel(level LogLevel) error {
	if !level.valid() {
		return errs.Wrapf(errs.ErrInvalidConfig, "unknown log level %q", level)
	}
	return nil
}

// ValidateKind enforces §6's messageType rule.
func ValidateKind(k Kind) error {
	if !k.valid() {
		return errs.Wrapf(errs.ErrInvalidConfig, "unknown message type %q", k)
	}
	return nil
}
