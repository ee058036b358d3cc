package llms

import "errors"

// ErrUpstream marks failures originating from the model provider: transport
// errors, non-OK statuses and malformed stream payloads. Streams that fail
// mid-response yield the tokens received so far before surfacing this error.
var ErrUpstream = errors.New("upstream model failure")
