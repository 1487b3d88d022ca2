package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// newCORSRouter はCORSミドルウェアを適用し、ハンドラーの呼び出しを記録するルーターを生成する。
func newCORSRouter(origins []string, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins))
	router.Any("/*path", func(c *gin.Context) {
		*called = true
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("許可されたオリジンからのリクエストにCORSヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000", "https://lms.example.com"}, &called)

		req := httptest.NewRequest(http.MethodGet, "/courses", nil)
		req.Header.Set("Origin", "https://lms.example.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !called {
			t.Error("ハンドラーが呼ばれるべき")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://lms.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://lms.example.com")
		}
		if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS" {
			t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
		}
		if got := w.Header().Get("Access-Control-Expose-Headers"); got != HeaderRequestID {
			t.Errorf("Access-Control-Expose-Headers = %q, want %q", got, HeaderRequestID)
		}
		if got := w.Header().Get("Vary"); got != "Origin" {
			t.Errorf("Vary = %q, want %q", got, "Origin")
		}
	})

	t.Run("許可されていないオリジンやOriginなしではCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"https://evil.com", ""} {
			var called bool
			router := newCORSRouter([]string{"http://localhost:3000"}, &called)

			req := httptest.NewRequest(http.MethodGet, "/courses", nil)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if !called {
				t.Errorf("Origin=%q: ハンドラーが呼ばれるべき", origin)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("Origin=%q: Access-Control-Allow-Origin = %q, want empty string", origin, got)
			}
		}
	})

	t.Run("許可されたオリジンのプリフライトは204で中断されること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)

		req := httptest.NewRequest(http.MethodOptions, "/courses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if called {
			t.Error("プリフライトでハンドラーが呼ばれるべきではない")
		}
	})

	t.Run("許可されていないオリジンのOPTIONSはハンドラーへ渡ること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)

		req := httptest.NewRequest(http.MethodOptions, "/courses", nil)
		req.Header.Set("Origin", "https://evil.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if !called {
			t.Error("ハンドラーが呼ばれるべき")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})

	t.Run("プリフライトでないOPTIONSはハンドラーへ渡ること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)

		req := httptest.NewRequest(http.MethodOptions, "/courses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if !called {
			t.Error("ハンドラーが呼ばれるべき")
		}
	})

	t.Run("空のオリジンリストでCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter(nil, &called)

		req := httptest.NewRequest(http.MethodGet, "/courses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})
}
