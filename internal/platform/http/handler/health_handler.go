// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kyalo-Caleb/teabot/internal/api"
)

// ReadinessChecker は推論エンジンが応答可能かを返します。
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler は /healthz を処理します。
type HealthHandler struct {
	model ReadinessChecker // nil の場合はモデル状態を返さない
}

// NewHealthHandler はHealthHandlerの新しいインスタンスを生成します。
func NewHealthHandler(model ReadinessChecker) *HealthHandler {
	return &HealthHandler{model: model}
}

// Health はサービスのヘルスチェックを返します。
// モデルが利用できない場合は 503 を返します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	status := http.StatusOK
	resp := api.HealthResponse{Status: "ok"}
	if h.model != nil {
		resp.Model = "ready"
		if !h.model.Ready() {
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
			resp.Model = "unavailable"
		}
	}

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(status)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(status, resp)
	}
}
