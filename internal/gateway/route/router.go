// Package route はGatewayのサービスレジストリ・ルートテーブル・ルーターを提供する。
//
// レジストリとルートテーブルは起動時に一度だけ構築され、以降は読み取り専用となる。
// そのため並行アクセス時にもロックを必要としない。
package route

import (
	"errors"
	"strings"
)

// ErrRouteNotFound はパスに一致するルートが存在しないことを表す。
var ErrRouteNotFound = errors.New("ルートが見つかりません")

// Router はリクエストパスから転送先サービスを解決する。
type Router struct {
	table *Table
}

// NewRouter はルートテーブルを元に新しいRouterを生成する。
func NewRouter(table *Table) *Router {
	return &Router{table: table}
}

// Resolve はパスに対応するルートを返す。
//
// 解決は次の順序で行う。
//  1. 空パスと"/"はどのルートにも一致しない（Gateway自身が応答する）。
//  2. パスをセグメント境界で深い方から切り詰め、テーブルのキーと完全一致するものを探す。
//     "/courses/ai/generate" は "/courses/ai/generate", "/courses/ai", "/courses" の順に照合する。
//  3. 完全一致がなければ、登録順にプレフィックスを走査し、パスの文字列プレフィックスとなる
//     最初のルートを採用する。
func (r *Router) Resolve(path string) (Entry, error) {
	path = "/" + strings.TrimLeft(path, "/")
	if path == "/" {
		return Entry{}, ErrRouteNotFound
	}

	candidate := strings.TrimRight(path, "/")
	for candidate != "" {
		if e, ok := r.table.exact(candidate); ok {
			return e, nil
		}
		idx := strings.LastIndexByte(candidate, '/')
		if idx <= 0 {
			break
		}
		candidate = candidate[:idx]
	}

	for _, e := range r.table.entries {
		if strings.HasPrefix(path, e.Prefix) {
			return e, nil
		}
	}
	return Entry{}, ErrRouteNotFound
}
