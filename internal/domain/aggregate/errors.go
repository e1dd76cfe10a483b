package aggregate

import "errors"

var (
	// ErrMissingSubmission means a reported user has no recorded submission
	// for the problem. Every compared file comes from a recorded submission,
	// so this is an internal invariant failure.
	ErrMissingSubmission = errors.New("no submission recorded for matched user")
	// ErrNotPair is returned for groups that do not have exactly two sides.
	ErrNotPair = errors.New("match group is not a pair")
)
