// Package config はGatewayの設定を読み込む。
//
// 設定は組み込みの既定値、YAMLファイル、環境変数の順に上書きされる。
// サービスとルートの一覧はYAMLで指定した場合、既定値を置き換える。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/lms-gateway/internal/gateway/route"
)

// Config はGatewayプロセス全体の設定。
type Config struct {
	// ListenAddr はGatewayのリッスンアドレス。
	ListenAddr string `yaml:"listen_addr"`
	// Identity はGateway識別ヘッダーに使う名前とバージョン。
	Identity IdentityConfig `yaml:"identity"`
	// Proxy は転送の設定。
	Proxy ProxyConfig `yaml:"proxy"`
	// Health はヘルスチェックの設定。
	Health HealthConfig `yaml:"health"`
	// Log はログ出力の設定。
	Log LogConfig `yaml:"log"`
	// CORS はCORSの設定。
	CORS CORSConfig `yaml:"cors"`
	// Auth はユーザーID伝搬の設定。
	Auth AuthConfig `yaml:"auth"`
	// Metrics はメトリクス公開の設定。
	Metrics MetricsConfig `yaml:"metrics"`
	// Server はHTTPサーバーの設定。
	Server ServerConfig `yaml:"server"`
	// Services はバックエンドサービスの一覧。
	Services []ServiceConfig `yaml:"services"`
	// Routes はパスプレフィックスとサービスの対応表（登録順に評価される）。
	Routes []RouteConfig `yaml:"routes"`
}

// IdentityConfig はGatewayの識別情報の設定。
type IdentityConfig struct {
	// Name はGatewayの名前。
	Name string `yaml:"name"`
	// Version はGatewayのバージョン。
	Version string `yaml:"version"`
}

// ProxyConfig は転送の設定。
type ProxyConfig struct {
	// ConnectTimeout はバックエンドへの接続確立の上限時間。
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// Timeout はサービス個別の指定がない場合の転送タイムアウト。
	Timeout time.Duration `yaml:"timeout"`
	// MaxBodyBytes はリクエスト・レスポンスボディの上限（バイト）。
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// HealthConfig はヘルスチェックの設定。
type HealthConfig struct {
	// ProbeTimeout はサービス1件あたりのヘルスチェックの上限時間。
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level はログレベル（debug, info, warn, error）。
	Level string `yaml:"level"`
	// Format は出力形式（json または console）。
	Format string `yaml:"format"`
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	// AllowedOrigins はクロスオリジンリクエストを許可するオリジンの一覧。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig はユーザーID伝搬の設定。
type AuthConfig struct {
	// JWTSecret が空の場合、ユーザーID伝搬は無効になる。
	JWTSecret string `yaml:"jwt_secret"`
}

// MetricsConfig はメトリクス公開の設定。
type MetricsConfig struct {
	// Enabled はメトリクスを公開するかどうか。
	Enabled bool `yaml:"enabled"`
	// ListenAddr はメトリクス用のリッスンアドレス。
	ListenAddr string `yaml:"listen_addr"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// ReadHeaderTimeout はリクエストヘッダー読み込みの上限時間。
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// ShutdownTimeout はグレースフルシャットダウンの上限時間。
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ServiceConfig はバックエンドサービス1件の設定。
type ServiceConfig struct {
	// Name はサービス名。
	Name string `yaml:"name"`
	// BaseURL はサービスのベースURL。
	BaseURL string `yaml:"base_url"`
	// HealthPath はヘルスチェックのパス（空なら/health）。
	HealthPath string `yaml:"health_path"`
	// Timeout はサービス個別の転送タイムアウト（0なら既定値）。
	Timeout time.Duration `yaml:"timeout"`
}

// RouteConfig はルート1件の設定。
type RouteConfig struct {
	// Prefix はパスプレフィックス。
	Prefix string `yaml:"prefix"`
	// Service は転送先のサービス名。
	Service string `yaml:"service"`
}

// Load は既定値にYAMLファイルと環境変数を重ねた設定を返す。
// pathが空の場合はファイルを読まない。
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	applyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := getenv("GATEWAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := getenv("FRONTEND_URL"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v := getenv("METRICS_LISTEN_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = v
	}
	for i := range cfg.Services {
		if v := getenv(ServiceURLEnv(cfg.Services[i].Name)); v != "" {
			cfg.Services[i].BaseURL = v
		}
	}
}

// ServiceURLEnv はサービスのベースURLを上書きする環境変数名を返す。
// 例: "course" → "COURSE_URL"、"ai-tutor" → "AI_TUTOR_URL"
func ServiceURLEnv(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_URL"
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate は設定値の整合性を検証する。サービスとルートはTopologyを構築して検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addrが空です"))
	}
	if c.Identity.Name == "" {
		errs = append(errs, errors.New("identity.nameが空です"))
	}
	if c.Proxy.ConnectTimeout < 0 || c.Proxy.Timeout < 0 || c.Health.ProbeTimeout < 0 {
		errs = append(errs, errors.New("タイムアウトに負の値は指定できません"))
	}
	if c.Proxy.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("proxy.max_body_bytesに負の値は指定できません"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addrが空です"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == c.ListenAddr {
		errs = append(errs, errors.New("metrics.listen_addrはlisten_addrと異なる必要があります"))
	}
	if _, err := c.Topology(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}

// GatewayIdentity はGateway識別ヘッダーの値（name/version）を返す。
func (c *Config) GatewayIdentity() string {
	if c.Identity.Version == "" {
		return c.Identity.Name
	}
	return c.Identity.Name + "/" + c.Identity.Version
}

// Topology はサービスとルートの設定から検証済みのトポロジーを構築する。
func (c *Config) Topology() (*route.Topology, error) {
	services := make([]route.Service, 0, len(c.Services))
	for _, s := range c.Services {
		services = append(services, route.Service{
			Name:       s.Name,
			BaseURL:    s.BaseURL,
			HealthPath: s.HealthPath,
			Timeout:    s.Timeout,
		})
	}
	entries := make([]route.Entry, 0, len(c.Routes))
	for _, r := range c.Routes {
		entries = append(entries, route.Entry{Prefix: r.Prefix, Service: r.Service})
	}

	topo, err := route.NewTopology(services, entries)
	if err != nil {
		return nil, fmt.Errorf("ルーティング設定が不正です: %w", err)
	}
	return topo, nil
}

// Defaults はLMSバックエンドの標準構成を既定値とする設定を返す。
func Defaults() *Config {
	return &Config{
		ListenAddr: ":8000",
		Identity: IdentityConfig{
			Name:    "lms-gateway",
			Version: "1.0.0",
		},
		Proxy: ProxyConfig{
			ConnectTimeout: 5 * time.Second,
			Timeout:        30 * time.Second,
			MaxBodyBytes:   10 << 20,
		},
		Health: HealthConfig{
			ProbeTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9091",
		},
		Server: ServerConfig{
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Services: []ServiceConfig{
			{Name: "auth", BaseURL: "http://localhost:8001"},
			{Name: "course", BaseURL: "http://localhost:8002"},
			{Name: "assignment", BaseURL: "http://localhost:8003"},
			{Name: "wellbeing", BaseURL: "http://localhost:8004"},
			{Name: "gamification", BaseURL: "http://localhost:8005"},
			{Name: "analytics", BaseURL: "http://localhost:8006"},
			{Name: "ai", BaseURL: "http://localhost:8007", Timeout: 60 * time.Second},
		},
		Routes: []RouteConfig{
			{Prefix: "/auth", Service: "auth"},
			{Prefix: "/users", Service: "auth"},
			{Prefix: "/courses", Service: "course"},
			{Prefix: "/assignments", Service: "assignment"},
			{Prefix: "/submissions", Service: "assignment"},
			{Prefix: "/wellbeing", Service: "wellbeing"},
			{Prefix: "/gamification", Service: "gamification"},
			{Prefix: "/analytics", Service: "analytics"},
			{Prefix: "/ai", Service: "ai"},
		},
	}
}
