package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues: a trace whose nesting information is
// structurally impossible, or a stored tree that cannot be trusted. A wrong
// tree produces misleading timings, so these abort the run.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrConfiguration represents invalid invocations, reported to the caller
// before any processing starts.
var ErrConfiguration = errors.New("configuration error")
