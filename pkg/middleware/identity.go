package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// 認証サービスが発行したトークンからユーザーIDを取り出すために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// HeaderUserID はバックエンドへユーザーIDを伝播するためのHTTPヘッダーキー。
const HeaderUserID = "X-User-ID"

// contextKeyUserID はGinコンテキストにユーザーIDを保存するキー。
const contextKeyUserID = "user_id"

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 認証サービスと同じ形式のトークンをテストや開発用に作るために使う。
func GenerateJWT(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lms-auth",
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// PropagateIdentity はユーザーIDをバックエンドへ伝播するGinミドルウェアを返す。
// クライアントが送ったX-User-IDは常に取り除き、有効なBearerトークンがある場合のみ
// トークンのuser_idクレームをX-User-IDとして設定する。
// 認可はバックエンドの責務のため、トークンがない・無効な場合もリクエストは拒否しない。
func PropagateIdentity(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)

	return func(c *gin.Context) {
		c.Request.Header.Del(HeaderUserID)

		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			c.Next()
			return
		}

		claims := &JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !token.Valid || claims.UserID == "" {
			c.Next()
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Request.Header.Set(HeaderUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// PropagateIdentityミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}
