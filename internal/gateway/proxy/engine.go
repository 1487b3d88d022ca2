package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/lms-gateway/internal/gateway/route"
	"github.com/nao1215/lms-gateway/pkg/httpclient"
)

const (
	// DefaultTimeout はサービス個別の指定がない場合の転送タイムアウト。
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodyBytes はリクエスト・レスポンスボディをバッファする上限の既定値（10MiB）。
	DefaultMaxBodyBytes int64 = 10 << 20
)

// Options はEngineの動作設定。
type Options struct {
	// ConnectTimeout はバックエンドへの接続確立の上限時間。
	ConnectTimeout time.Duration
	// Timeout はサービス個別の指定がない場合の呼び出し全体の上限時間。
	Timeout time.Duration
	// MaxBodyBytes はボディをバッファする上限（バイト）。
	MaxBodyBytes int64
}

// Engine はリクエストをバックエンドサービスへ転送する。
// クライアントの一覧は生成時に確定し、以降は読み取り専用のため並行に使用できる。
type Engine struct {
	// registry はサービスレジストリ。
	registry *route.Registry
	// clients はサービス名ごとのHTTPクライアント。
	clients map[string]*httpclient.Client
	// timeout は既定の転送タイムアウト。
	timeout time.Duration
	// maxBodyBytes はボディの上限。
	maxBodyBytes int64
}

// NewEngine はレジストリの各サービスに対するクライアントを生成してEngineを返す。
// トランスポートは全サービスで共有する。
func NewEngine(registry *route.Registry, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	transport := httpclient.NewTransport(opts.ConnectTimeout)
	clients := make(map[string]*httpclient.Client, registry.Len())
	for _, svc := range registry.Services() {
		clients[svc.Name] = httpclient.New(svc.BaseURL, transport)
	}
	return &Engine{
		registry:     registry,
		clients:      clients,
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// MaxBodyBytes はボディの上限を返す。
func (e *Engine) MaxBodyBytes() int64 {
	return e.maxBodyBytes
}

// TimeoutFor はサービスに適用する転送タイムアウトを返す。
func (e *Engine) TimeoutFor(service string) time.Duration {
	if svc, ok := e.registry.Lookup(service); ok && svc.Timeout > 0 {
		return svc.Timeout
	}
	return e.timeout
}

// Forward はリクエストをサービスへ転送し、レスポンスを返す。
// バックエンドが返したステータスコードはエラー扱いせずそのまま返す。
// 失敗した場合は*Errorを返す。
func (e *Engine) Forward(ctx context.Context, service string, req *Request) (*Response, error) {
	return e.Do(ctx, service, req, e.TimeoutFor(service))
}

// Do は指定したタイムアウトでサービスへリクエストを送信する。
// ヘルスチェックもこの関数を経由する。
func (e *Engine) Do(ctx context.Context, service string, req *Request, timeout time.Duration) (*Response, error) {
	client, ok := e.clients[service]
	if !ok {
		return nil, ServiceUnregistered(service)
	}
	if int64(len(req.Body)) > e.maxBodyBytes {
		return nil, PayloadTooLarge(e.maxBodyBytes)
	}
	if timeout <= 0 {
		timeout = e.timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(callCtx, req.Method, req.Path, req.RawQuery, req.Header, req.Body)
	if err != nil {
		return nil, classify(callCtx, service, timeout, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, e.maxBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return nil, Internal(service, fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", e.maxBodyBytes))
		}
		return nil, classify(callCtx, service, timeout, err)
	}
	return newResponse(resp, body), nil
}

// classify は転送時のエラーをGatewayのエラー種別に分類する。
// 呼び出し全体の期限切れを最優先し、次に接続失敗を判定する。
func classify(ctx context.Context, service string, timeout time.Duration, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout(service, timeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Unavailable(service, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(service, timeout, err)
	}
	return Internal(service, err)
}

// errBodyTooLarge はボディが上限を超えたことを表す。
var errBodyTooLarge = errors.New("ボディが上限を超えています")

// readLimited はlimitバイトまでボディを読み込む。超過した場合はerrBodyTooLargeを返す。
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// ReadBody は受信したリクエストボディを上限付きでバッファする。
// Content-Lengthが上限を超えている場合は読み込まずにエラーを返す。
// limitが0以下の場合はDefaultMaxBodyBytesを使う。
func ReadBody(r io.Reader, contentLength, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if contentLength > limit {
		return nil, PayloadTooLarge(limit)
	}
	if r == nil || r == http.NoBody {
		return nil, nil
	}
	data, err := readLimited(r, limit)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return nil, PayloadTooLarge(limit)
		}
		return nil, Internal("", fmt.Errorf("リクエストボディの読み込みに失敗: %w", err))
	}
	return data, nil
}
