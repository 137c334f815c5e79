package models

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConnectionLost       = errors.New("upstream connection lost")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrAlreadyRunning       = errors.New("scanner already running")
	ErrNotRunning           = errors.New("scanner not running")
	ErrUnknownBroker        = errors.New("unknown broker type")
)
