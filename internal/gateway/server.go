package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/lms-gateway/internal/gateway/config"
	"github.com/nao1215/lms-gateway/internal/gateway/health"
	"github.com/nao1215/lms-gateway/internal/gateway/proxy"
	"github.com/nao1215/lms-gateway/internal/gateway/route"
	"github.com/nao1215/lms-gateway/pkg/log"
	"github.com/nao1215/lms-gateway/pkg/middleware"
)

const (
	// pathRoot はGateway自身の識別情報を返すパス。
	pathRoot = "/"
	// pathHealth はGateway自身の死活確認パス。
	pathHealth = "/health"
	// pathServicesHealth はバックエンド全体のヘルスチェック結果を返すパス。
	pathServicesHealth = "/health/services"
)

// Resolver はリクエストパスから転送先のルートを解決する。route.Routerが実装する。
type Resolver interface {
	Resolve(path string) (route.Entry, error)
}

// Server はAPI GatewayのHTTPサーバー。
// 全てのリクエストを1つのハンドラーで受け、パスに応じて応答または転送する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はGatewayのHTTPサーバー。
	httpServer *http.Server
	// metricsServer はメトリクス公開用のHTTPサーバー（無効時はnil）。
	metricsServer *http.Server
	// resolver はパスから転送先を解決する。
	resolver Resolver
	// engine はバックエンドへリクエストを転送する。
	engine *proxy.Engine
	// health はバックエンドのヘルスチェックを集約する。
	health *health.Aggregator
	// metrics はメトリクス（無効時はnil）。
	metrics *Metrics
	// name はGatewayの名前。
	name string
	// version はGatewayのバージョン。
	version string
	// identity はGateway識別ヘッダーの値。
	identity string
	// shutdownTimeout はグレースフルシャットダウンの上限時間。
	shutdownTimeout time.Duration
}

// NewServer は設定から新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config) (*Server, error) {
	topo, err := cfg.Topology()
	if err != nil {
		return nil, err
	}

	engine := proxy.NewEngine(topo.Registry, proxy.Options{
		ConnectTimeout: cfg.Proxy.ConnectTimeout,
		Timeout:        cfg.Proxy.Timeout,
		MaxBodyBytes:   cfg.Proxy.MaxBodyBytes,
	})
	aggregator := health.NewAggregator(topo.Registry, engine, cfg.Health.ProbeTimeout, cfg.GatewayIdentity())

	var metrics *Metrics
	if cfg.Metrics.Enabled {
		metrics = NewMetrics()
	}

	s := &Server{
		router:          gin.New(),
		resolver:        route.NewRouter(topo.Table),
		engine:          engine,
		health:          aggregator,
		metrics:         metrics,
		name:            cfg.Identity.Name,
		version:         cfg.Identity.Version,
		identity:        cfg.GatewayIdentity(),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	s.setupRoutes(cfg.CORS.AllowedOrigins, cfg.Auth.JWTSecret)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}
	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}
	return s, nil
}

// Handler はGatewayのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待ち受ける。
// キャンセル後はshutdownTimeoutを上限に処理中のリクエストの完了を待って停止する。
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", s.httpServer.Addr).Str("identity", s.identity).Msg("Gatewayを起動します")
		return serve(s.httpServer)
	})
	if s.metricsServer != nil {
		g.Go(func() error {
			log.Info().Str("addr", s.metricsServer.Addr).Msg("メトリクスを公開します")
			return serve(s.metricsServer)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		log.Info().Msg("Gatewayを停止します")
		return s.shutdown(shutdownCtx)
	})

	return g.Wait()
}

// serve はHTTPサーバーを起動する。正常な停止はエラーとしない。
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s での待ち受けに失敗: %w", srv.Addr, err)
	}
	return nil
}

// shutdown はHTTPサーバーを停止する。
func (s *Server) shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("Gatewayの停止に失敗: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("メトリクスサーバーの停止に失敗: %w", err))
		}
	}
	return errors.Join(errs...)
}

// setupRoutes はミドルウェアと単一のディスパッチハンドラーを設定する。
func (s *Server) setupRoutes(allowedOrigins []string, jwtSecret string) {
	var observers []middleware.AccessObserver
	if s.metrics != nil {
		observers = append(observers, s.metrics.ObserveAccess)
	}

	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.AccessLog(observers...))
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS(allowedOrigins))
	if jwtSecret != "" {
		s.router.Use(middleware.PropagateIdentity(jwtSecret))
	}

	dispatch := s.handleDispatch()
	s.router.Any("/*path", dispatch)
	// Anyに含まれない拡張メソッドも同じハンドラーで扱う
	s.router.NoRoute(dispatch)
}

// handleDispatch はパスに応じて処理を振り分けるハンドラーを返す。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "", pathRoot:
			s.handleIdentity(c)
		case pathHealth:
			s.handleLiveness(c)
		case pathServicesHealth:
			s.handleServicesHealth(c)
		default:
			s.handleProxy(c)
		}
	}
}

// handleIdentity はGatewayの名前とバージョンを返す。
func (s *Server) handleIdentity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.name,
		"version": s.version,
		"status":  "running",
	})
}

// handleLiveness はGateway自身の死活状態を返す。
func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.name})
}

// handleServicesHealth は全バックエンドのヘルスチェック結果を返す。
// 全体の状態はボディで表し、ステータスコードは常に200とする。
func (s *Server) handleServicesHealth(c *gin.Context) {
	report := s.health.CheckAll(c.Request.Context())
	if s.metrics != nil {
		s.metrics.ObserveReport(report)
	}
	c.JSON(http.StatusOK, report)
}

// handleProxy はリクエストを解決したサービスへ転送し、レスポンスを中継する。
func (s *Server) handleProxy(c *gin.Context) {
	path := c.Request.URL.Path
	entry, err := s.resolver.Resolve(path)
	if err != nil {
		if errors.Is(err, route.ErrRouteNotFound) {
			s.writeError(c, proxy.RouteNotFound(path))
			return
		}
		s.writeError(c, proxy.Internal("", fmt.Errorf("ルート解決に失敗: %w", err)))
		return
	}
	c.Set(middleware.ContextKeyService, entry.Service)

	body, err := proxy.ReadBody(c.Request.Body, c.Request.ContentLength, s.engine.MaxBodyBytes())
	if err != nil {
		s.writeError(c, asProxyError(entry.Service, err))
		return
	}

	resp, err := s.engine.Forward(c.Request.Context(), entry.Service, &proxy.Request{
		Method:   c.Request.Method,
		Path:     c.Request.URL.EscapedPath(),
		RawQuery: c.Request.URL.RawQuery,
		Header:   proxy.SanitizeHeaders(c.Request.Header, s.identity),
		Body:     body,
	})
	if err != nil {
		s.writeError(c, asProxyError(entry.Service, err))
		return
	}
	writeResponse(c, resp)
}

// asProxyError はエラーを*proxy.Errorに変換する。
func asProxyError(service string, err error) *proxy.Error {
	var perr *proxy.Error
	if errors.As(err, &perr) {
		return perr
	}
	return proxy.Internal(service, err)
}

// writeError はエラーを構造化したJSONで返す。
// 内部エラーの詳細はログにのみ出力し、呼び出し元には汎用メッセージを返す。
func (s *Server) writeError(c *gin.Context, perr *proxy.Error) {
	var event *zerolog.Event
	if perr.Kind == proxy.KindInternal {
		event = log.Error()
	} else {
		event = log.Warn()
	}
	event.
		Err(perr).
		Str("kind", string(perr.Kind)).
		Str("service", perr.Service).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("request_id", middleware.GetRequestID(c)).
		Msg("リクエストの転送に失敗しました")

	body := gin.H{
		"error": perr.Message(),
		"code":  perr.Kind,
	}
	if perr.Service != "" {
		body["service"] = perr.Service
	}
	if perr.Path != "" {
		body["path"] = perr.Path
	}
	if perr.Kind == proxy.KindUpstreamTimeout {
		body["timeout_seconds"] = perr.Timeout.Seconds()
	}
	c.AbortWithStatusJSON(perr.Status(), body)
}

// writeResponse はバックエンドのレスポンスをステータス・ヘッダー・ボディを保ったまま返す。
func writeResponse(c *gin.Context, resp *proxy.Response) {
	header := c.Writer.Header()
	for name, values := range resp.Header {
		if strings.EqualFold(name, "Content-Type") {
			continue
		}
		// ミドルウェアが設定済みのGateway管理ヘッダーは上書きしない
		if gatewayOwned(name) && len(header.Values(name)) > 0 {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	if resp.ContentType != "" {
		header.Set("Content-Type", resp.ContentType)
	} else {
		// 自動判定させない
		header["Content-Type"] = nil
	}

	c.Status(resp.StatusCode)
	payload := resp.Payload()
	if len(payload) == 0 || !bodyAllowed(c.Request.Method, resp.StatusCode) {
		c.Writer.WriteHeaderNow()
		return
	}
	_, _ = c.Writer.Write(payload)
}

// gatewayOwned はGatewayのミドルウェアが値を決めるレスポンスヘッダーかどうかを判定する。
func gatewayOwned(name string) bool {
	name = http.CanonicalHeaderKey(name)
	return name == middleware.HeaderRequestID || strings.HasPrefix(name, "Access-Control-")
}

// bodyAllowed はレスポンスにボディを書き込めるかどうかを判定する。
func bodyAllowed(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
