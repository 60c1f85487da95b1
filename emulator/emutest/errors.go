package emutest

import "errors"

var (
	ErrMemAlign    = errors.New("memory not page aligned")
	ErrMemOverlap  = errors.New("memory region overlap")
	ErrMemUnmapped = errors.New("memory region unmapped")
)
