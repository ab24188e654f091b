package util

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrLookupFailed        = errors.New("external lookup failed")

	ErrNoExtractableText = errors.New("no extractable text found in PDF (likely scanned)")
)
