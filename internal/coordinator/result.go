package coordinator

import "tube-courier/internal/session"

// Code classifies the outcome of a coordinator operation.
type Code string

const (
	CodeOK                 Code = "ok"
	CodeStarted            Code = "started"
	CodeNotFound           Code = "not_found"
	CodeUpstream           Code = "upstream"
	CodeAlreadyProcessed   Code = "already_processed"
	CodeAlreadyDownloading Code = "already_downloading"
	CodeUnauthorized       Code = "unauthorized"
	CodePayloadTooLarge    Code = "payload_too_large"
	CodeTransport          Code = "transport"
	CodeExpired            Code = "expired"
)

// Result is returned by every public coordinator operation. Session is the
// latest snapshot when one is known; Err carries the cause for failures.
type Result struct {
	Code    Code
	Session session.Session
	Err     error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Code == CodeOK || r.Code == CodeStarted
}

func fail(code Code, err error) Result {
	return Result{Code: code, Err: err}
}
