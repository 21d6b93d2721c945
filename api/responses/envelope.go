package responses

// SuccessEnvelope wraps payloads returned by the service's own endpoints.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the public part of a typed error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
