package core

import "errors"

var (
	// ErrTransport covers network failures, rate limits and 5xx responses that
	// persisted through the client's own retries. Callers may retry later.
	ErrTransport = errors.New("transport failure")
	// ErrProviderAPI is a non-2xx answer that retrying will not fix (4xx).
	ErrProviderAPI = errors.New("provider api error")
	// ErrMalformedResponse is a reply whose shape could not be used (no choices, bad JSON).
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrMalformedArguments is a tool-call payload that is not a key/value mapping.
	ErrMalformedArguments = errors.New("malformed tool arguments")
	// ErrUnknownTool is a tool call naming a function that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
)

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
