package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/files"
	"github.com/akolanti/docqa/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logger_i.NewLogger("handlers").Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, r *http.Request, httpCode int, id string, message string) {
	writeJsonResponse(w, httpCode, adapter.ErrorBody(id, traceId(r.Context()), message, httpCode))
}

// writeError maps a domain error to a status code and a one-line message.
func writeError(w http.ResponseWriter, r *http.Request, id string, err error) {
	code, message := httpError(err)
	WriteErrorResponse(w, r, code, id, message)
}

func httpError(err error) (int, string) {
	var (
		ve *commonModels.ValidationError
		pe *commonModels.ProviderError
		se *commonModels.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, commonModels.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "Only .pdf, .txt and .md files are supported"
	case errors.Is(err, files.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, commonModels.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, commonModels.ErrIngestBusy):
		return http.StatusConflict, "Indexing is already running, try again shortly"
	case errors.Is(err, commonModels.ErrUnavailable):
		return http.StatusServiceUnavailable, "Vector store is unavailable"
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "Embedding provider failed, the previous collection is kept"
	case errors.As(err, &se):
		return http.StatusInternalServerError, "Vector store write failed, the previous collection is kept"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func traceId(ctx context.Context) string {
	if v, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return v
	}
	return ""
}

func validateContext(ctx context.Context, log *logger_i.Logger) bool {
	if ctx.Err() != nil {
		log.Warn("context error", "error", ctx.Err())
		return false
	}
	return true
}
