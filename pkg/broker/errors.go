package broker

import "errors"

var (
	ErrInvalidConfig = errors.New("broker: invalid config")
	ErrConnection    = errors.New("broker: connection failed")
	ErrPublish       = errors.New("broker: publish failed")
	ErrQueueFull     = errors.New("broker: async queue full")
	ErrClosed        = errors.New("broker: publisher closed")
)
