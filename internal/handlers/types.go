package handlers

// ErrorResponse is the error body rendered by the operator API.
type ErrorResponse struct {
	Message string `json:"message"`
}
