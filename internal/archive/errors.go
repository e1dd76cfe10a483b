package archive

import "errors"

// Sentinel kinds for unpacking errors.
var (
	ErrExtract       = errors.New("archive extraction failed")
	ErrMalformedName = errors.New("malformed export entry name")
	ErrWorkDirExists = errors.New("working directory already exists")
)
