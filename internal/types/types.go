package types

import (
	"errors"
	"fmt"
)

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

var (
	// ErrConfiguration is returned for an invalid device tag or settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrResourceResolution is returned when a model identifier cannot be resolved.
	ErrResourceResolution = errors.New("resource resolution error")
	// ErrArgument is returned when a required input is missing or out of range.
	ErrArgument = errors.New("argument error")
	// ErrTransport is returned when the source image bytes could not be fetched.
	ErrTransport = errors.New("transport error")
	// ErrDecode is returned when bytes cannot be decoded as an image.
	ErrDecode = errors.New("decode error")
	// ErrBackend is returned when the generative backend fails to sample.
	ErrBackend = errors.New("backend execution error")
)

var kinds = []error{
	ErrConfiguration,
	ErrResourceResolution,
	ErrArgument,
	ErrTransport,
	ErrDecode,
	ErrBackend,
}

// Wrap tags err with kind so both match with errors.Is.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}

// Errorf builds a new error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind reports which error class err belongs to, or nil when it carries none.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
