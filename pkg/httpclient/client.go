package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout はTCP接続確立までの既定の上限時間。
	DefaultConnectTimeout = 5 * time.Second
	// defaultKeepAlive はアイドル接続のTCPキープアライブ間隔。
	defaultKeepAlive = 60 * time.Second
)

// Client はサービス間通信用のHTTPクライアント。
// 1つのバックエンドサービスのベースURLに束縛される。
// 呼び出し全体のタイムアウトはcontextの期限で制御し、
// 接続確立のタイムアウトはトランスポート側で制御する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL（末尾スラッシュなし）。
	baseURL string
}

// NewTransport はGatewayからバックエンドへの通信に使用するトランスポートを生成する。
// connectTimeoutが0以下の場合はDefaultConnectTimeoutを使う。
// 複数のClientで共有することで接続プールを共用できる。
func NewTransport(connectTimeout time.Duration) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: defaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://course:8002"）を指定する。
// transportがnilの場合は既定の接続タイムアウトを持つトランスポートを生成する。
func New(baseURL string, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = NewTransport(DefaultConnectTimeout)
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			// リダイレクトは追跡せず、そのまま呼び出し元へ返す
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL はパスとクエリ文字列から接続先のURLを組み立てる。
// クエリ文字列は加工せずにそのまま付与する。
func (c *Client) URL(path, rawQuery string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Do は指定されたメソッド・パス・ヘッダー・ボディでリクエストを送信する。
// ステータスコードによるエラー判定は行わず、レスポンスをそのまま返す。
// 呼び出し元はレスポンスボディを必ず閉じること。
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, header http.Header, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	url := c.URL(path, rawQuery)
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	return resp, nil
}
