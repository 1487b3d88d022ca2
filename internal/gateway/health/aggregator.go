// Package health はバックエンドサービスのヘルスチェックを並行に実行し、
// 結果を1つのレポートに集約する。
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/lms-gateway/internal/gateway/proxy"
	"github.com/nao1215/lms-gateway/internal/gateway/route"
)

// DefaultProbeTimeout はヘルスチェック1件あたりの既定のタイムアウト。
const DefaultProbeTimeout = 5 * time.Second

// Status はヘルス状態を表す。
type Status string

const (
	// StatusHealthy は正常を表す。
	StatusHealthy Status = "healthy"
	// StatusDegraded は一部のサービスが2xx以外を返したことを表す（集約結果のみ）。
	StatusDegraded Status = "degraded"
	// StatusUnhealthy はサービスが2xx以外を返した、または集約結果で接続失敗があったことを表す。
	StatusUnhealthy Status = "unhealthy"
	// StatusError はサービスへの接続自体に失敗したことを表す（サービス単位のみ）。
	StatusError Status = "error"
)

// Result はサービス1件のヘルスチェック結果。
type Result struct {
	// Service はサービス名。
	Service string `json:"service"`
	// Status はヘルス状態。
	Status Status `json:"status"`
	// LatencyMS はチェックに要した時間（ミリ秒）。
	LatencyMS int64 `json:"latency_ms"`
	// StatusCode はサービスが返したステータスコード（応答がない場合は0）。
	StatusCode int `json:"status_code,omitempty"`
	// Error は失敗理由。
	Error string `json:"error,omitempty"`
}

// Report は全サービスのヘルスチェック結果を集約したもの。
type Report struct {
	// OverallStatus は全体のヘルス状態。
	OverallStatus Status `json:"overall_status"`
	// Services はサービスごとの結果（レジストリの登録順）。
	Services []Result `json:"services"`
	// GeneratedAt はレポートの生成時刻。
	GeneratedAt time.Time `json:"generated_at"`
}

// Prober はサービスへリクエストを送信する。proxy.Engineが実装する。
type Prober interface {
	Do(ctx context.Context, service string, req *proxy.Request, timeout time.Duration) (*proxy.Response, error)
}

// Aggregator はレジストリの全サービスへヘルスチェックを行う。
type Aggregator struct {
	// registry はチェック対象のサービスレジストリ。
	registry *route.Registry
	// prober はリクエストの送信に使う。
	prober Prober
	// timeout はチェック1件あたりのタイムアウト。
	timeout time.Duration
	// identity はGateway識別ヘッダーの値。
	identity string
	// now は現在時刻を返す。
	now func() time.Time
}

// NewAggregator は新しいAggregatorを生成する。
// timeoutが0以下の場合はDefaultProbeTimeoutを使う。
func NewAggregator(registry *route.Registry, prober Prober, timeout time.Duration, identity string) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Aggregator{
		registry: registry,
		prober:   prober,
		timeout:  timeout,
		identity: identity,
		now:      time.Now,
	}
}

// CheckAll は全サービスへ並行にヘルスチェックを行い、全件の完了を待って集約結果を返す。
// 個々のチェックの失敗はその結果に記録し、他のサービスのチェックには影響させない。
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	services := a.registry.Services()
	results := make([]Result, len(services))

	var g errgroup.Group
	for i, svc := range services {
		g.Go(func() error {
			results[i] = a.probe(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		OverallStatus: Overall(results),
		Services:      results,
		GeneratedAt:   a.now().UTC(),
	}
}

// probe はサービス1件のヘルスチェックを行う。
func (a *Aggregator) probe(ctx context.Context, svc route.Service) Result {
	req := &proxy.Request{
		Method: http.MethodGet,
		Path:   svc.HealthPath,
		Header: proxy.SanitizeHeaders(nil, a.identity),
	}

	start := time.Now()
	resp, err := a.prober.Do(ctx, svc.Name, req, a.timeout)
	result := Result{
		Service:   svc.Name,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Status = StatusError
		result.Error = errorDetail(err)
		return result
	}

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Status = StatusHealthy
	} else {
		result.Status = StatusUnhealthy
	}
	return result
}

// errorDetail はレポートに載せる失敗理由を返す。
func errorDetail(err error) string {
	var perr *proxy.Error
	if errors.As(err, &perr) {
		return perr.Message()
	}
	return err.Error()
}

// Overall はサービスごとの結果から全体のヘルス状態を求める。
// 接続失敗が1件でもあればunhealthy、2xx以外が1件でもあればdegraded、それ以外はhealthy。
func Overall(results []Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusUnhealthy
		case StatusUnhealthy:
			overall = StatusDegraded
		}
	}
	return overall
}
