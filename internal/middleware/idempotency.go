package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"storefront/internal/idempotency"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

const (
	// IdempotencyKeyHeader carries the client supplied key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayHeader is set on responses served from a stored record.
	ReplayHeader = "Idempotent-Replay"

	maxIdempotencyKeyLength = 255
	maxIdempotentBodyBytes  = 1 << 20
)

// Idempotency makes a route safe to retry with the same Idempotency-Key. The
// key is scoped to the route and the authenticated user. Requests without a
// key, or a nil guard, pass through untouched.
func Idempotency(guard *idempotency.Guard, scope string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if guard == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLength {
				writeError(w, r, model.ErrCodeValidation, "Idempotency-Key is too long")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes+1))
			if err != nil {
				writeError(w, r, model.ErrCodeInvalidJSON, "failed to read request body")
				return
			}
			if len(body) > maxIdempotentBodyBytes {
				logger.Warn().Str("path", r.URL.Path).Msg("request body exceeds limit")
				writeError(w, r, model.ErrCodeInvalidJSON, "request body is too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := guard.Key(scope+":"+UserIDFromContext(r.Context()), clientKey)

			record, err := guard.Begin(r.Context(), key, requestHash)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				writeError(w, r, model.ErrCodeDuplicateRequest, "a request with this Idempotency-Key is still in progress")
				return
			case errors.Is(err, idempotency.ErrKeyReused):
				writeError(w, r, model.ErrCodeDuplicateRequest, "Idempotency-Key was already used with a different request body")
				return
			case err != nil:
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("idempotency check failed")
				writeError(w, r, model.ErrCodeInternalError, "could not check Idempotency-Key")
				return
			case record != nil:
				writeStoredResponse(w, record)
				return
			}

			rec := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.status >= http.StatusBadRequest {
				if err := guard.Release(ctx, key); err != nil {
					logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to release idempotency key")
				}
				return
			}
			if err := guard.Complete(ctx, key, requestHash, rec.status, rec.Header().Get("Content-Type"), rec.body.Bytes()); err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to store idempotent response")
			}
		})
	}
}

func writeStoredResponse(w http.ResponseWriter, record *idempotency.Record) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// responseCapture writes through to the client while keeping a copy of the response.
type responseCapture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *responseCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
