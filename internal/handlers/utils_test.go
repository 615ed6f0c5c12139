package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/files"
	"github.com/stretchr/testify/assert"
)

func TestHttpError(t *testing.T) {
	tests := []struct {
		err     error
		code    int
		message string
	}{
		{&commonModels.ValidationError{Field: "name", Reason: "must not contain path separators"}, http.StatusBadRequest, ""},
		{fmt.Errorf("save: %w", commonModels.ErrUnsupportedType), http.StatusUnsupportedMediaType, ""},
		{files.ErrTooLarge, http.StatusRequestEntityTooLarge, ""},
		{fmt.Errorf("delete: %w", commonModels.ErrNotFound), http.StatusNotFound, ""},
		{commonModels.ErrIngestBusy, http.StatusConflict, ""},
		{commonModels.ErrUnavailable, http.StatusServiceUnavailable, ""},
		{commonModels.NewProviderError("openai", "embed", errors.New("401 invalid key")), http.StatusInternalServerError,
			"Embedding provider failed, the previous collection is kept"},
		{fmt.Errorf("replace: %w", commonModels.NewStoreError("local", "swap", errors.New("401 invalid key"))), http.StatusInternalServerError,
			"Vector store write failed, the previous collection is kept"},
		{commonModels.NewStoreError("none", "meta", commonModels.ErrUnavailable), http.StatusServiceUnavailable, ""},
		{errors.New("401 invalid key"), http.StatusInternalServerError, "Internal error"},
	}
	for _, tt := range tests {
		code, message := httpError(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.NotContains(t, message, "401 invalid key")
		if tt.message != "" {
			assert.Equal(t, tt.message, message)
		}
	}
}
