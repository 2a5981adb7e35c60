package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse is the envelope every order and admin endpoint replies with.
// Success and Error never both carry content: payment verification failures,
// ownership rejections and the like land in Error while Data stays empty.
// The webhook endpoint is the one exception to this envelope; it answers the
// gateway with bare status codes.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON writes the envelope with the given status. Encoding failures are
// ignored: the header is already out and there is nothing useful left to do.
func WriteJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
