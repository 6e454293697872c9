package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the envelope of every error response.
type errorBody struct {
	Error apperr.JSONError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes the error envelope.
// Server-side failures are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		attrs := append([]slog.Attr{
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
		}, apperr.LogAttrs(err)...)
		slog.LogAttrs(r.Context(), slog.LevelError, "request_failed", attrs...)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		err = apperr.New(apperr.ErrCodeInternal, "request timed out", err)
	}
	writeJSON(w, status, errorBody{Error: apperr.ToJSON(err)})
}

func statusFor(err error) int {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch apperr.GetCode(err) {
	case apperr.ErrCodeInvalidInput, apperr.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case apperr.ErrCodeNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeCustomIDMismatch,
		apperr.ErrCodeTemplateNotConfigured,
		apperr.ErrCodeSequenceNotConfigured,
		apperr.ErrCodeUnsupportedElement:
		return http.StatusUnprocessableEntity
	case apperr.ErrCodeDuplicateCustomID,
		apperr.ErrCodeOrderConflict,
		apperr.ErrCodeSerializationConflict,
		apperr.ErrCodeSequenceConflict:
		return http.StatusConflict
	case apperr.ErrCodeIndexLocked, apperr.ErrCodeStoreUnavailable, apperr.ErrCodeCorruptIndex:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return apperr.ValidationError("request body is required", err)
		}
		return apperr.ValidationError("malformed JSON body: "+err.Error(), err)
	}
	return nil
}

// uuidParam parses a UUID path parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.ValidationError(name+" must be a valid UUID", err).
			WithDetail(name, raw)
	}
	return id, nil
}

// int64Param parses an integer path parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperr.ValidationError(name+" must be a positive integer", err).
			WithDetail(name, raw)
	}
	return n, nil
}

// limitParam parses an optional non-negative limit; absent means -1, the
// configured default.
func limitParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.ErrCodeInvalidQuery, name+" must be a non-negative integer", err).
			WithDetail(name, raw)
	}
	return n, nil
}
