package storage

import "errors"

var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrInvalidKey     = errors.New("storage: invalid object key")
	ErrInvalidConfig  = errors.New("storage: invalid config")
	ErrConnection     = errors.New("storage: connection failed")
)
