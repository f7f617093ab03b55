package types

// SuccessEnvelope wraps every successful HTTP payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the shopper-facing error body. Details carries structured
// context such as available_stock and is only populated for codes that
// allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error HTTP payload.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewError builds an error envelope.
func NewError(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message, Details: details}}
}
