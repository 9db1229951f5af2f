package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
	"github.com/KaramelBytes/fingerprint-cli/internal/pipeline"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

// errBadRequest marks malformed query or body input.
var errBadRequest = errors.New("bad request")

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrInvalidIdentifier),
		errors.Is(err, projection.ErrUnsupportedMethod),
		errors.Is(err, pipeline.ErrInvalidRadius),
		errors.Is(err, pipeline.ErrUnknownRow),
		errors.Is(err, pipeline.ErrNoNumericData),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 with a detail body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		code = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorBody{Detail: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Detail: msg})
}
