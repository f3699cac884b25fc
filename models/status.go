package models

// ErrCodeUnauthorized is returned by the status API for a missing or wrong token.
const ErrCodeUnauthorized = "UNAUTHORIZED"

// ErrorDetail is the error body of the status API.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
