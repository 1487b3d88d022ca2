package proxy

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Request はバックエンドへ転送するリクエスト。
// ボディはバッファ済みで、ヘッダーはSanitizeHeadersを通したものを渡す。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// Path は受信したパス（エスケープ済み）。
	Path string
	// RawQuery は受信したクエリ文字列。
	RawQuery string
	// Header はバックエンドへ送るヘッダー。
	Header http.Header
	// Body はリクエストボディ。
	Body []byte
}

// Response はバックエンドから受け取ったレスポンス。
type Response struct {
	// StatusCode はバックエンドが返したステータスコード。
	StatusCode int
	// Header はホップバイホップヘッダーを取り除いたレスポンスヘッダー。
	Header http.Header
	// ContentType はバックエンドが返したContent-Type（未指定なら空）。
	ContentType string
	// Body はレスポンスボディの生データ。
	Body []byte
	// JSON はJSONとしてデコードしたボディ。decodedがfalseの場合は使用しない。
	JSON any

	decoded bool
}

// IsJSON はボディがJSONとしてデコードされたかどうかを返す。
func (r *Response) IsJSON() bool {
	return r.decoded
}

// Payload は呼び出し元へ返すボディを返す。
// JSONとしてデコードできた場合は再エンコードした値を、それ以外は生データを返す。
func (r *Response) Payload() []byte {
	if !r.decoded {
		return r.Body
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.JSON); err != nil {
		return r.Body
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// newResponse はバックエンドのレスポンスからResponseを生成する。
func newResponse(resp *http.Response, body []byte) *Response {
	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	StripHopByHop(header)
	// 長さは中継時に改めて計算する
	header.Del("Content-Length")

	r := &Response{
		StatusCode:  resp.StatusCode,
		Header:      header,
		ContentType: header.Get("Content-Type"),
		Body:        body,
	}
	if header.Get("Content-Encoding") == "" && isJSONContentType(r.ContentType) {
		r.JSON, r.decoded = decodeJSON(body)
	}
	return r
}

// isJSONContentType はContent-TypeがJSONを表すかどうかを判定する。
// application/json と +json 接尾辞のメディアタイプをJSONとみなす。
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodeJSON はボディを1つのJSON値としてデコードする。
// 数値は精度を落とさないようjson.Numberのまま保持する。
func decodeJSON(body []byte) (any, bool) {
	if len(body) == 0 || !json.Valid(body) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}
