package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	diagnosishandler "github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/transport/handler"
	"github.com/Kyalo-Caleb/teabot/internal/platform/http/handler"
	"github.com/Kyalo-Caleb/teabot/internal/platform/http/middleware"
	jwtmw "github.com/Kyalo-Caleb/teabot/internal/platform/jwt"
	"github.com/Kyalo-Caleb/teabot/internal/shared/ratelimiter"
)

// Options はルータに任意で組み込むコンポーネントです。
type Options struct {
	Metrics     http.Handler                      // nil の場合 /metrics を公開しない
	RateLimiter ratelimiter.RateLimiterInterface // nil の場合は無制限
}

func NewRouter(diagnosis *diagnosishandler.DiagnosisHandler, health *handler.HealthHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.AllowAllOrigins())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	r.OPTIONS("/healthz", health.Health)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	// 病害検出（メソッドの振り分けはハンドラ側で行う）
	detect := r.Group("/")
	if opts.RateLimiter != nil {
		detect.Use(ratelimiter.Middleware(opts.RateLimiter))
	}
	{
		detect.Any("/detectDisease", diagnosis.DetectDisease)
		detect.Any("/", diagnosis.DetectDisease)
	}

	// 認証必須のルート
	// → リクエストヘッダーに predictions:read スコープ付きの JWT が必要になる
	auth := r.Group("/v1")
	auth.Use(jwtmw.AuthRequired(jwtmw.ScopeReadPredictions))
	{
		auth.GET("/predictions", diagnosis.ListPredictions)
	}

	return r
}
