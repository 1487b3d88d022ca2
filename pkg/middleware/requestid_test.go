package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	newRouter := func(got *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/health", func(c *gin.Context) {
			*got = GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("リクエストIDがなければUUIDが生成されること", func(t *testing.T) {
		t.Parallel()

		var got string
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("GetRequestID() = %q, UUIDではない: %v", got, err)
		}
		if h := w.Header().Get(HeaderRequestID); h != got {
			t.Errorf("X-Request-ID = %q, want %q", h, got)
		}
	})

	t.Run("クライアントのリクエストIDが引き継がれること", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(HeaderRequestID, "trace-abc")
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, req)

		if got != "trace-abc" {
			t.Errorf("GetRequestID() = %q, want %q", got, "trace-abc")
		}
		if h := w.Header().Get(HeaderRequestID); h != "trace-abc" {
			t.Errorf("X-Request-ID = %q, want %q", h, "trace-abc")
		}
	})

	t.Run("長すぎるリクエストIDは置き換えられること", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("a", maxRequestIDLength+1))
		newRouter(&got).ServeHTTP(httptest.NewRecorder(), req)

		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("GetRequestID() = %q, UUIDではない: %v", got, err)
		}
	})
}
