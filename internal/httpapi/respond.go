package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/divyekant/memoryd/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error struct {
		Kind    apperr.Kind    `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.FailedPrecondition:
		return http.StatusConflict
	case apperr.ResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the apperr.Kind-derived status code and an
// {"error": {...}} JSON envelope. Plain (non-apperr) errors are treated
// as internal and their message is not leaked to the client.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.NewInternal("internal error", err)
	}

	resp := errorBody{}
	resp.Error.Kind = ae.Kind
	resp.Error.Details = ae.Details
	if ae.Kind == apperr.Internal && ae.Cause != nil {
		resp.Error.Message = "internal error"
	} else {
		resp.Error.Message = ae.Message
	}
	writeJSON(w, statusForKind(ae.Kind), resp)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, apperr.NewInvalidArgument(message))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.NewInvalidArgument("invalid request body: " + err.Error())
	}
	return nil
}
