package toolsurface

import "github.com/opnforge/opnforge/pkg/engine"

// Envelope is the {ok, data?, error?} shape every Tool Surface operation
// returns (§6).
type Envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo is the {code, message, retryable} shape of a failed Envelope.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func ok(data interface{}) Envelope {
	return Envelope{OK: true, Data: data}
}

// fail builds a failure Envelope from err, translating the engine's error
// taxonomy into the caller-facing retryable flag. ErrLocked and ErrStale are
// retryable at the caller's discretion (backoff-then-retry, re-plan-then-
// retry) even though the engine's own internal APPLY_RETRIES loop does not
// retry them itself.
func fail(err error) Envelope {
	code := engine.Code(err)
	retryable := engine.IsRetryable(err)
	switch code {
	case engine.ErrCodeLocked, engine.ErrCodeStale:
		retryable = true
	}
	if code == "" {
		code = "InternalError"
	}
	return Envelope{OK: false, Error: &ErrorInfo{Code: code, Message: err.Error(), Retryable: retryable}}
}
