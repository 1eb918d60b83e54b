package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"chatsync/store"
)

func TestAbortWithStoreErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"edit rejected", store.ErrEditRejected, http.StatusConflict},
		{"not sender", store.ErrNotSender, http.StatusForbidden},
		{"invalid operation", store.ErrInvalidOperation, http.StatusBadRequest},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			abortWithStoreErr(c, tt.err, "fallback")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
