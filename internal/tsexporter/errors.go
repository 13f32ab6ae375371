package tsexporter

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks an invalid destination or threshold, reported by New.
	ErrConfig = errors.New("invalid exporter config")
	// ErrWrite marks a failure to write the local artifact.
	ErrWrite = errors.New("artifact write failed")
	// ErrPush marks a failure to deliver a batch to the remote collector.
	ErrPush = errors.New("remote push failed")
	// ErrClosed is returned by Submit and Flush after Close.
	ErrClosed = errors.New("exporter closed")
)

// FlushError describes a dropped batch. It unwraps to ErrWrite, ErrPush
// or both.
type FlushError struct {
	Interface string
	Entries   int
	Bytes     int
	Err       error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf(
		"flushing %d entries (%d bytes) for %s: %v",
		e.Entries, e.Bytes, e.Interface, e.Err,
	)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
