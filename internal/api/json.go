package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON renders every API response body, success and error alike, so
// record payloads and search results share one content type and encoding
// path. Encode failures are logged; the status line is already committed.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse is the uniform error body: sentinel errors from the record
// stores are translated to a status code plus this shape.
type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
