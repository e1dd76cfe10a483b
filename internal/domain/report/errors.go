package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrMalformedGroup   = errors.New("malformed match group")
	ErrUnknownExtractor = errors.New("unknown report extractor")
)
