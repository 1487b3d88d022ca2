package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/lms-gateway/pkg/log"
)

// ContextKeyService はハンドラーが転送先サービス名を保存するGinコンテキストのキー。
const ContextKeyService = "service"

// Access はリクエスト1件の処理結果。
type Access struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Status はレスポンスのステータスコード。
	Status int
	// Service は転送先サービス名（転送しなかった場合は空）。
	Service string
	// Latency は処理時間。
	Latency time.Duration
}

// AccessObserver はリクエストの処理結果を受け取る関数。
type AccessObserver func(Access)

// AccessLog はリクエストごとに構造化ログを1行出力するGinミドルウェアを返す。
// observersにはメトリクスの記録などを渡す。
func AccessLog(observers ...AccessObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		a := Access{
			Method:  c.Request.Method,
			Path:    c.Request.URL.Path,
			Status:  c.Writer.Status(),
			Service: c.GetString(ContextKeyService),
			Latency: time.Since(start),
		}
		for _, observe := range observers {
			observe(a)
		}

		event := eventFor(a.Status)
		event.
			Str("method", a.Method).
			Str("path", a.Path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", a.Status).
			Dur("latency", a.Latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", GetRequestID(c))
		if a.Service != "" {
			event.Str("service", a.Service)
		}
		event.Msg("リクエストを処理しました")
	}
}

// eventFor はステータスコードに応じたログレベルのイベントを返す。
func eventFor(status int) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	default:
		return log.Info()
	}
}
