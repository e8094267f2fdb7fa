package internal

import "errors"

var (
	ENOTSUP           = errors.New("not supported")
	ErrSkipped        = errors.New("skipped")
	ErrObjectNotFound = errors.New("object not found")
)
