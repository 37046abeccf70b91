package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// WriteJSON writes a JSON response with the given status code. Responses
// from this service are never cacheable.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the uniform JSON error envelope.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"errorDescription,omitempty"`
	RetryAfter  int    `json:"retryAfter,omitempty"` // seconds
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, code int, errCode, desc string) {
	WriteJSON(w, code, ErrorBody{Error: errCode, Description: desc})
}

// WriteRetryAfter writes an error envelope with a Retry-After header, for
// 423 and 429 responses.
func WriteRetryAfter(w http.ResponseWriter, code int, errCode, desc string, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, code, ErrorBody{Error: errCode, Description: desc, RetryAfter: secs})
}

// NoCache sets Cache-Control and Pragma to prevent caching, required for
// responses carrying tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// DecodeJSON decodes a request body into v, rejecting unknown fields and
// oversized payloads.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
