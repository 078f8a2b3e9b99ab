package storage

import "errors"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("invalid key")
	ErrStoreClosed = errors.New("store is closed")
)
