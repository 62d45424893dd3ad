package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

const maxBodyBytes = 1 << 20

// JSONResponse writes data as a JSON-encoded HTTP response with the given status code.
func JSONResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes an error response as JSON with the specified HTTP status code.
func JSONError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

// DecodeJSON reads a single JSON object and rejects unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse JSON: %v", err)
	}
	return nil
}

// WriteError maps err to a status code. Internal errors are logged and hidden
// from the caller.
func WriteError(w http.ResponseWriter, mylog logger.Logger, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		mylog.Error("request failed", err)
		if !errors.Is(err, xerrors.ErrDBConn) {
			err = errors.New("internal error")
		}
	}
	JSONError(w, code, err)
}

// StatusFor maps shared sentinel errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrConflict), errors.Is(err, xerrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, xerrors.ErrMaxConcurentExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrDBConn), errors.Is(err, xerrors.ErrMBConn):
		return http.StatusServiceUnavailable
	case errors.Is(err, xerrors.ErrFieldIsEmpty), errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Page reads limit/offset query params; limit is clamped to [1, 100] with default 20.
func Page(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
