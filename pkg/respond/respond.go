package respond

import (
	"encoding/json"
	"net/http"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, ErrorBody{Error: message})
}

// ErrorDetail writes an error with a human-readable explanation.
func ErrorDetail(w http.ResponseWriter, r *http.Request, code int, title, message string) {
	JSON(w, r, code, ErrorBody{Error: title, Message: message})
}
