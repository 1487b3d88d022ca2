package proxy

import (
	"net/http"
	"strings"
)

// HeaderGateway はGatewayを経由したことを示す識別ヘッダー。
const HeaderGateway = "X-Gateway"

// hopByHopHeaders は単一の接続でのみ意味を持ち、転送してはならないヘッダー。
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// IsHopByHop はヘッダー名がホップバイホップヘッダーかどうかを大文字小文字を区別せずに判定する。
func IsHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// SanitizeHeaders は受信ヘッダーからバックエンドへ送るヘッダーを生成する。
// ホップバイホップヘッダーを取り除き、Gateway識別ヘッダーをちょうど1つ付与する。
// それ以外のヘッダーは値の順序と重複を含めてそのまま保持する。
// 入力のヘッダーは変更しない。
func SanitizeHeaders(in http.Header, identity string) http.Header {
	out := make(http.Header, len(in)+1)
	for name, values := range in {
		if IsHopByHop(name) || strings.EqualFold(name, HeaderGateway) {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	out[HeaderGateway] = []string{identity}
	return out
}

// StripHopByHop はヘッダーからホップバイホップヘッダーをその場で取り除く。
// バックエンドのレスポンスを呼び出し元へ中継する前に使用する。
func StripHopByHop(h http.Header) {
	for name := range h {
		if IsHopByHop(name) {
			delete(h, name)
		}
	}
}
