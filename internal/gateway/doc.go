// Package gateway はLMSバックエンドのAPI Gatewayを提供する。
//
// 全てのクライアントリクエストを1つのエントリーポイントで受け付け、
// パスプレフィックスから解決したバックエンドサービスへ転送する。
// ルートパスとヘルスチェックはGateway自身が応答し、
// /health/services では全サービスのヘルスチェック結果を集約して返す。
package gateway
