package proxy

import (
	"fmt"
	"net/http"
	"time"
)

// Kind はGatewayが返すエラーの種類を表す。
type Kind string

const (
	// KindRouteNotFound はパスに一致するルートがないことを表す。
	KindRouteNotFound Kind = "route_not_found"
	// KindServiceUnregistered はルートの参照先がレジストリに存在しないことを表す（設定不備）。
	KindServiceUnregistered Kind = "service_unregistered"
	// KindUpstreamUnavailable はバックエンドへの接続に失敗したことを表す。
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindUpstreamTimeout はバックエンドがタイムアウト内に応答しなかったことを表す。
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindPayloadTooLarge はボディがバッファ上限を超えたことを表す。
	KindPayloadTooLarge Kind = "payload_too_large"
	// KindInternal はプロトコル違反やその他の想定外の失敗を表す。
	KindInternal Kind = "internal_error"
)

// Error はGatewayが呼び出し元へ返すエラー。
// Errには内部的な原因を保持するが、呼び出し元へはMessageのみを返す。
type Error struct {
	// Kind はエラーの種類。
	Kind Kind
	// Service は関係するサービス名。
	Service string
	// Path は関係するリクエストパス。
	Path string
	// Timeout はタイムアウト時に適用されていた時間。
	Timeout time.Duration
	// Limit はボディサイズ上限（バイト）。
	Limit int64
	// Err は原因となったエラー。
	Err error
}

// Error はログ用の詳細なメッセージを返す。
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Status はエラーに対応するHTTPステータスコードを返す。
func (e *Error) Status() int {
	switch e.Kind {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindServiceUnregistered, KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Message は呼び出し元へ返すメッセージを返す。内部の詳細は含めない。
func (e *Error) Message() string {
	switch e.Kind {
	case KindRouteNotFound:
		return fmt.Sprintf("パス %s に対応するルートが見つかりません", e.Path)
	case KindServiceUnregistered:
		return fmt.Sprintf("サービス %s はレジストリに登録されていません", e.Service)
	case KindUpstreamUnavailable:
		return fmt.Sprintf("サービス %s に接続できません", e.Service)
	case KindUpstreamTimeout:
		return fmt.Sprintf("サービス %s が %s 以内に応答しませんでした", e.Service, e.Timeout)
	case KindPayloadTooLarge:
		return fmt.Sprintf("ボディが上限 %d バイトを超えています", e.Limit)
	default:
		return "内部サーバーエラーが発生しました"
	}
}

// RouteNotFound はルート未検出エラーを生成する。
func RouteNotFound(path string) *Error {
	return &Error{Kind: KindRouteNotFound, Path: path}
}

// ServiceUnregistered はサービス未登録エラーを生成する。
func ServiceUnregistered(service string) *Error {
	return &Error{Kind: KindServiceUnregistered, Service: service}
}

// Unavailable は接続失敗エラーを生成する。
func Unavailable(service string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Service: service, Err: err}
}

// Timeout はタイムアウトエラーを生成する。
func Timeout(service string, timeout time.Duration, err error) *Error {
	return &Error{Kind: KindUpstreamTimeout, Service: service, Timeout: timeout, Err: err}
}

// PayloadTooLarge はボディサイズ超過エラーを生成する。
func PayloadTooLarge(limit int64) *Error {
	return &Error{Kind: KindPayloadTooLarge, Limit: limit}
}

// Internal は想定外の失敗を表すエラーを生成する。
func Internal(service string, err error) *Error {
	return &Error{Kind: KindInternal, Service: service, Err: err}
}
