package services

import "errors"

// Dashboard service errors
var (
	// Upload errors
	ErrNoFile = errors.New("no file uploaded")

	// Section errors
	ErrUnknownSection      = errors.New("unknown section")
	ErrSectionNotChartable = errors.New("section cannot be charted")

	// General errors
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
