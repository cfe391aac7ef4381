package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront/internal/model"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing useful left to tell the client.
		return
	}
}

// writeError maps err to its API code and renders the standard error body.
// Internal, gateway and timeout failures only ever expose the public message.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	code := model.ErrorCode(err)
	status := model.HTTPStatus(code)

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("code", code).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("request failed")

	writeJSON(w, status, model.ErrorResponse{
		Error:     model.PublicMessage(code),
		Message:   clientMessage(code, err),
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

func clientMessage(code string, err error) string {
	switch code {
	case model.ErrCodeInternalError, model.ErrCodeGateway, model.ErrCodeTransactionTimeout, model.ErrCodeInvalidSignature:
		return model.PublicMessage(code)
	}

	var stockErr *model.InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.Error()
	}
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return model.PublicMessage(code)
}

// decodeJSON reads a single JSON document from the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.WrapDomainError(model.ErrCodeInvalidJSON, "Invalid request body", err)
	}
	if dec.More() {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "Request body must contain a single JSON object")
	}
	return nil
}
