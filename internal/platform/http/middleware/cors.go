// Package middleware はアプリ全体に適用するGinミドルウェアを提供します。
package middleware

import "github.com/gin-gonic/gin"

// AllowAllOrigins はすべてのレスポンスに Access-Control-Allow-Origin: * を付けます。
// プリフライトの応答内容は各ハンドラーが決めます。
func AllowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}
