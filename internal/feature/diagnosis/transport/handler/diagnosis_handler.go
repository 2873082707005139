// Package handler はdiagnosisフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kyalo-Caleb/teabot/internal/api"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
)

// HeaderErrorCode は失敗理由の機械可読コードを返すヘッダーです。
const HeaderErrorCode = "X-Error-Code"

// DiagnosisUsecase は病害検出ユースケースのインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DiagnosisUsecase interface {
	Diagnose(ctx context.Context, src entity.ImageSource) (*entity.Detection, error)
	RecentPredictions(ctx context.Context, limit int) ([]entity.PredictionRecord, error)
}

// DiagnosisHandler は病害検出のHTTPリクエストを処理します。
type DiagnosisHandler struct {
	uc             DiagnosisUsecase
	distinctStatus bool
}

// Option は DiagnosisHandler の設定を変更します。
type Option func(*DiagnosisHandler)

// WithDistinctStatus はエラー種別ごとにステータスコードを分けます。
// false の場合、パイプラインのエラーはすべて500です。
func WithDistinctStatus(enabled bool) Option {
	return func(h *DiagnosisHandler) { h.distinctStatus = enabled }
}

// NewDiagnosisHandler はDiagnosisHandlerの新しいインスタンスを生成します。
func NewDiagnosisHandler(uc DiagnosisUsecase, opts ...Option) *DiagnosisHandler {
	h := &DiagnosisHandler{uc: uc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DetectDisease は画像から茶葉の病害を検出します。
//
// エンドポイント: /detectDisease（および /）
//   - POST: {"image": "<base64またはURL>", "isUrl": bool}
//   - OPTIONS: プリフライト応答（204）
//   - その他: 405
func (h *DiagnosisHandler) DetectDisease(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Header("Access-Control-Allow-Methods", "POST")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	var req api.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("リクエストボディの解析に失敗", "error", err, "remote_addr", c.ClientIP())
		c.String(http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Image == "" {
		c.String(http.StatusBadRequest, "No image provided")
		return
	}

	det, err := h.uc.Diagnose(c.Request.Context(), entity.ImageSource{Image: req.Image, IsURL: bool(req.IsURL)})
	if err != nil {
		h.fail(c, err)
		return
	}
	// JSON は NaN/Inf を表現できないため、描画前に弾く
	if !finite(det) {
		h.fail(c, domain.NewError(domain.ErrModelInference, "encode",
			fmt.Errorf("non-finite model output: confidence=%v bbox=%v", det.Confidence, det.BBox)))
		return
	}

	c.JSON(http.StatusOK, api.DetectResponse{
		Disease:    det.Label,
		Confidence: det.Confidence,
		BBox:       det.BBox,
	})
}

func finite(det *entity.Detection) bool {
	vals := append([]float32{det.Confidence}, det.BBox[:]...)
	for _, v := range vals {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// fail はエラーをレスポンスに変換します。本文は常に "Internal Server Error: <message>" です。
func (h *DiagnosisHandler) fail(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	if code == domain.CodeMissingInput {
		c.String(http.StatusBadRequest, "No image provided")
		return
	}

	status := http.StatusInternalServerError
	if h.distinctStatus {
		status = statusFor(code)
	}
	slog.Error("病害検出に失敗", "error", err, "code", code, "status", status, "remote_addr", c.ClientIP())

	c.Header(HeaderErrorCode, code)
	c.String(status, "Internal Server Error: "+err.Error())
}

func statusFor(code string) int {
	switch code {
	case domain.CodeInvalidImage:
		return http.StatusBadRequest
	case domain.CodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ListPredictions は推論履歴を新しい順に返します。
//
// エンドポイント: GET /v1/predictions?limit=N（要認証）
func (h *DiagnosisHandler) ListPredictions(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	recs, err := h.uc.RecentPredictions(c.Request.Context(), limit)
	if err != nil {
		slog.Error("推論履歴の取得に失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list predictions"})
		return
	}

	items := make([]api.PredictionResponse, 0, len(recs))
	for _, r := range recs {
		items = append(items, api.PredictionResponse{
			ID:          r.ID,
			Disease:     r.Disease,
			Confidence:  r.Confidence,
			BBox:        r.BBox,
			Source:      r.Source,
			ImageDigest: r.ImageDigest,
			CreatedAt:   r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, api.PredictionListResponse{Items: items, Count: len(items)})
}
