// Package httpclient はGatewayからバックエンドサービスへのHTTP通信を行うクライアントを提供する。
//
// Proxy Engineによるリクエスト転送とHealth Aggregatorによるヘルスチェックの
// 両方がこのクライアントを経由する。接続確立と呼び出し全体で別々の
// タイムアウトを持ち、リダイレクトは追跡せずに呼び出し元へ返す。
package httpclient
