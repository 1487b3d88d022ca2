package route

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultHealthPath はヘルスパスが未指定のサービスに使用するパス。
const DefaultHealthPath = "/health"

// Service はGatewayの背後にある1つのバックエンドサービスを表す。
// 起動時に一度だけ生成され、以降は変更されない。
type Service struct {
	// Name はサービスの一意な名前（例: "course"）。
	Name string
	// BaseURL はサービスのベースURL（例: "http://course:8002"）。
	BaseURL string
	// HealthPath はヘルスチェック用のパス。空の場合はDefaultHealthPathを使う。
	HealthPath string
	// Timeout はこのサービスへの転送タイムアウト。0の場合はエンジンの既定値を使う。
	Timeout time.Duration
}

// Registry はサービス名からServiceを引くための読み取り専用レジストリ。
// 登録順を保持するため、ヘルスチェック結果もこの順序で返る。
type Registry struct {
	order  []string
	byName map[string]Service
}

// NewRegistry はサービス定義を検証してレジストリを生成する。
func NewRegistry(services []Service) (*Registry, error) {
	r := &Registry{
		order:  make([]string, 0, len(services)),
		byName: make(map[string]Service, len(services)),
	}
	for i, svc := range services {
		svc.Name = strings.TrimSpace(svc.Name)
		if svc.Name == "" {
			return nil, fmt.Errorf("services[%d]: nameは必須です", i)
		}
		if _, dup := r.byName[svc.Name]; dup {
			return nil, fmt.Errorf("services[%d]: サービス名 %q が重複しています", i, svc.Name)
		}

		svc.BaseURL = strings.TrimRight(strings.TrimSpace(svc.BaseURL), "/")
		u, err := url.Parse(svc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("services[%d] (%s): base_urlの解析に失敗: %w", i, svc.Name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("services[%d] (%s): base_urlはホストを含むhttp(s)のURLである必要があります", i, svc.Name)
		}

		if svc.HealthPath == "" {
			svc.HealthPath = DefaultHealthPath
		}
		if !strings.HasPrefix(svc.HealthPath, "/") {
			return nil, fmt.Errorf("services[%d] (%s): health_pathは'/'で始まる必要があります", i, svc.Name)
		}
		if svc.Timeout < 0 {
			return nil, fmt.Errorf("services[%d] (%s): timeoutに負の値は指定できません", i, svc.Name)
		}

		r.order = append(r.order, svc.Name)
		r.byName[svc.Name] = svc
	}
	return r, nil
}

// Lookup は名前に対応するサービスを返す。
func (r *Registry) Lookup(name string) (Service, bool) {
	svc, ok := r.byName[name]
	return svc, ok
}

// Services は登録順にすべてのサービスを返す。
// 返されるスライスは呼び出し側で自由に変更してよい。
func (r *Registry) Services() []Service {
	out := make([]Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len は登録されているサービス数を返す。
func (r *Registry) Len() int {
	return len(r.order)
}
