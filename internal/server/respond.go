// File: internal/server/respond.go
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRequestBody = 1 << 20 // 1 MiB

// decode reads a JSON request body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return schemas.NewError(schemas.KindValidation, "server.decode", "malformed JSON request body")
	}
	return nil
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(err error) int {
	switch schemas.KindOf(err) {
	case schemas.KindValidation:
		return http.StatusBadRequest
	case schemas.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeSuccess emits the uniform envelope with timing metadata.
func (s *Server) writeSuccess(w http.ResponseWriter, r *http.Request, start time.Time, processing time.Duration, data any) {
	resp := schemas.APIResponse{
		Success: true,
		Data:    data,
		Metadata: schemas.ResponseMetadata{
			ProcessingTimeMs: processing.Milliseconds(),
			TotalTimeMs:      time.Since(start).Milliseconds(),
			RequestID:        middleware.GetReqID(r.Context()),
		},
	}
	writeJSON(w, http.StatusOK, &resp)
}

// writeError emits the error envelope. Unclassified errors log at error
// level and surface as a bare internal message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	kind := schemas.KindOf(err)
	message := err.Error()

	var engineErr *schemas.Error
	if !errors.As(err, &engineErr) {
		s.logger.Error("Unclassified handler error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal error"
	}

	resp := schemas.APIResponse{
		Success: false,
		Error:   &schemas.APIError{Kind: kind, Message: message},
		Metadata: schemas.ResponseMetadata{
			TotalTimeMs: time.Since(start).Milliseconds(),
			RequestID:   middleware.GetReqID(r.Context()),
		},
	}
	writeJSON(w, statusFor(err), &resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// metricsMiddleware records request counts and latency per route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		s.metrics.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}
