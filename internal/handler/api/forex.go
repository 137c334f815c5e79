package api

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/internal/usecase"
	xhttp "SignalScan/pkg/http"
	applogger "SignalScan/pkg/logger"
)

// ForexService analyses currency pairs.
type ForexService interface {
	AnalyzeFromProvider(ctx context.Context, pair, timeframe string, minRR float64) (models.ForexAnalysis, error)
	ForexScan(ctx context.Context, cfg models.ForexScanConfig) ([]models.ForexAnalysis, error)
}

type ForexHandler struct {
	engine   ForexService
	defaults models.ForexScanConfig
	rl       *ratelimit.Limiter
	l        *applogger.Logger
}

func NewForexHandler(engine ForexService, defaults models.ForexScanConfig, l *applogger.Logger) *ForexHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ForexHandler{
		engine:   engine,
		defaults: defaults,
		rl:       ratelimit.New(),
		l:        l.With(applogger.String("component", "forex_api")),
	}
}

func (h *ForexHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/forex")
	g.GET("/pairs", h.Pairs)
	g.GET("/analyze", h.Analyze)
	g.POST("/scan", h.Scan)
}

func (h *ForexHandler) Pairs(c echo.Context) error {
	pairs := usecase.AvailablePairs(xhttp.QueryBool(c, "only_major", false))
	return xhttp.ListResponse(c, pairs, int64(len(pairs)))
}

func (h *ForexHandler) Analyze(c echo.Context) error {
	req := &models.ForexAnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair := strings.ToUpper(strings.TrimSpace(req.Pair))
	if !usecase.IsKnownPair(pair) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown pair %s", pair))
	}

	a, err := h.engine.AnalyzeFromProvider(c.Request().Context(), pair, req.Timeframe, req.MinRiskReward)
	if err != nil {
		h.l.Error("forex analyze failed", applogger.String("pair", pair), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *ForexHandler) Scan(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":forex_scan", 3, 0.2) {
		return xhttp.AppErrorResponse(c, errRateLimited)
	}
	req := &models.ForexScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg := req.Config()
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = append([]string(nil), h.defaults.Pairs...)
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = append([]string(nil), h.defaults.Timeframes...)
	}

	out, err := h.engine.ForexScan(c.Request().Context(), cfg)
	if err != nil {
		h.l.Warn("forex scan incomplete", applogger.Int("analyses", len(out)), applogger.Error(err))
		if len(out) == 0 {
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}
