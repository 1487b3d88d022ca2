// Package middleware はGatewayのGinエンジンで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、リクエストID、構造化アクセスログ、CORS、
// JWTからのユーザーID伝搬を含む。
package middleware
