package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware(t *testing.T) {
	validToken := "test-token-123"

	tests := []struct {
		name           string
		authHeader     string
		handlerCalled  bool
		expectedStatus int
		expectedErrMsg string
	}{
		{
			name:           "Valid Token",
			authHeader:     validToken,
			handlerCalled:  true,
			expectedStatus: http.StatusOK,
			expectedErrMsg: "",
		},
		{
			name:           "Invalid Token",
			authHeader:     "wrong-token",
			handlerCalled:  false,
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "invalid token",
		},
		{
			name:           "Missing Authorization Header",
			authHeader:     "",
			handlerCalled:  false,
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "missing authorization header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			router := gin.New()
			router.Use(AuthMiddleware(validToken))
			router.GET("/protected", func(c *gin.Context) {
				handlerCalled = true
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.handlerCalled, handlerCalled, "handler called status mismatch")
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedErrMsg != "" {
				assert.Contains(t, w.Body.String(), tt.expectedErrMsg)
			}
		})
	}
}
