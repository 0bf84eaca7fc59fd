// internal/app/features/errors/errors.go
// Package errors writes JSON error responses. Typed service errors map to
// HTTP statuses by kind; anything untyped is a 500 with a generic message.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/auth"
	"go.uber.org/zap"
)

// body is the JSON shape of every error response.
type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Invalid:
		return http.StatusBadRequest
	case apperr.Limited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorLogger writes error responses and logs the ones worth logging.
type ErrorLogger struct {
	Log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// Write responds with the status and message carried by err. 5xx errors
// are logged with the request path and user.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, msg string, err error) {
	kind := apperr.KindOf(err)
	status := StatusOf(kind)
	if status >= 500 {
		e.Log.Error(msg, e.fields(r, err)...)
	} else {
		e.Log.Debug(msg, e.fields(r, err)...)
	}
	writeJSON(w, status, body{Error: string(kind), Message: apperr.MessageOf(err)})
}

// LogServerError logs err and responds 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, e.fields(r, err)...)
	if userMsg == "" {
		userMsg = apperr.ErrInternal.Message
	}
	writeJSON(w, http.StatusInternalServerError, body{Error: string(apperr.Internal), Message: userMsg})
}

// LogBadRequest logs at warn level and responds 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	if userMsg == "" {
		userMsg = apperr.ErrInvalid.Message
	}
	writeJSON(w, http.StatusBadRequest, body{Error: string(apperr.Invalid), Message: userMsg})
}

// Invalid responds 400 with a validation message, without logging.
func Invalid(w http.ResponseWriter, userMsg string) {
	writeJSON(w, http.StatusBadRequest, body{Error: string(apperr.Invalid), Message: userMsg})
}

// NotFound responds 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, body{Error: string(apperr.NotFound), Message: apperr.ErrNotFound.Message})
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	if err != nil {
		var ae *apperr.Error
		if stderrors.As(err, &ae) && ae.Err != nil {
			fields = append(fields, zap.Error(ae.Err))
		} else {
			fields = append(fields, zap.Error(err))
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
