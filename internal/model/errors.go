package model

import "errors"

var (
	// ErrDataUnavailable means price or indicator data is not there yet.
	// The evaluation is skipped and retried on the next pass.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrMalformedSpec means an alert or drawing is internally inconsistent.
	ErrMalformedSpec = errors.New("malformed spec")

	// ErrInvalidNumeric means a threshold or price is NaN or infinite.
	ErrInvalidNumeric = errors.New("invalid numeric value")
)
