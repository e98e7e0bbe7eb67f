package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidCronSpec is returned for malformed cron expressions
	ErrInvalidCronSpec = errors.New("invalid cron spec")
)
