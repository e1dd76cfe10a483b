package moss

import "errors"

// Sentinel errors for the comparison service.
var (
	ErrDial             = errors.New("moss: cannot connect")
	ErrLanguageRejected = errors.New("moss: language not supported")
	ErrBadResponse      = errors.New("moss: unexpected response")
	ErrNoFiles          = errors.New("moss: no files to submit")
	ErrFetch            = errors.New("moss: report fetch failed")
)
