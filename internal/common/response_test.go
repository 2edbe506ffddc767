package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func handleOnRecorder(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	HandleError(c, err)
	return w
}

func TestHandleErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("template", "welcome"), http.StatusNotFound},
		{"validation", NewValidationError("bad input"), http.StatusBadRequest},
		{"conflict", NewConflictError("name taken"), http.StatusConflict},
		{"unauthorized", NewUnauthorizedError(""), http.StatusUnauthorized},
		{"rate limited", NewRateLimitError("send rate limit exceeded"), http.StatusTooManyRequests},
		{"config", NewConfigError("missing api key"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := handleOnRecorder(tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("dispatching batch: %w", NewRateLimitError("slow down"))
	w := handleOnRecorder(wrapped)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "slow down")
}

func TestHandleErrorHidesInternalDetail(t *testing.T) {
	w := handleOnRecorder(errors.New("pq: connection refused"))
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), "internal server error")
}
