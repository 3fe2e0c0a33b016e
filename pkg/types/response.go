package types

// SuccessEnvelope wraps every 2xx JSON body so clients can always read
// the payload from a top-level "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape. Details carries structured
// context (validation fields, conflict info) only when the error code
// allows exposing it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps non-2xx JSON bodies under a top-level "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
