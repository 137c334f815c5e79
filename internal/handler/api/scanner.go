package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/internal/usecase"
	xhttp "SignalScan/pkg/http"
	applogger "SignalScan/pkg/logger"
)

// ScannerService is the part of the scanner the HTTP layer drives.
type ScannerService interface {
	Start(ctx context.Context, cfg models.ScanConfig) error
	Stop() error
	IsRunning() bool
	LatestSignals() []models.Signal
	Status() models.ScannerStatus
	EvaluateOnce(ctx context.Context, symbol string, cfg models.ScanConfig) (*models.Signal, usecase.Outcome, error)
}

type EvaluateResponse struct {
	Symbol  string          `json:"symbol"`
	Outcome usecase.Outcome `json:"outcome"`
	Signal  *models.Signal  `json:"signal,omitempty"`
}

type ScannerHandler struct {
	scanner  ScannerService
	history  domrepo.SignalStore
	defaults models.ScanConfig
	rl       *ratelimit.Limiter
	l        *applogger.Logger
}

// NewScannerHandler serves the scanner endpoints. history may be nil.
func NewScannerHandler(scanner ScannerService, history domrepo.SignalStore, defaults models.ScanConfig, l *applogger.Logger) *ScannerHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ScannerHandler{
		scanner:  scanner,
		history:  history,
		defaults: defaults,
		rl:       ratelimit.New(),
		l:        l.With(applogger.String("component", "scanner_api")),
	}
}

func (h *ScannerHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/scanner/start", h.Start)
	g.POST("/scanner/stop", h.Stop)
	g.GET("/scanner/status", h.Status)
	g.GET("/scanner/signals", h.Signals)
	g.POST("/evaluate", h.Evaluate)
	g.GET("/signals/history", h.History)
}

// baseConfig copies the configured defaults so a request body never writes
// into their slices.
func (h *ScannerHandler) baseConfig() models.ScanConfig {
	cfg := h.defaults
	cfg.Symbols = append([]string(nil), h.defaults.Symbols...)
	cfg.Timeframes = append([]int(nil), h.defaults.Timeframes...)
	return cfg
}

func (h *ScannerHandler) Start(c echo.Context) error {
	cfg := h.baseConfig()
	cfg.Timeframe, cfg.Timeframes = 0, nil
	if err := c.Bind(&cfg); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_BIND", Message: err.Error()}})
	}
	cfg.ResolveTimeframes(h.defaults)
	if verr := xhttp.ValidateStruct(c.Request().Context(), &cfg); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// The scan loop must outlive the request.
	if err := h.scanner.Start(context.WithoutCancel(c.Request().Context()), cfg); err != nil {
		h.l.Warn("scanner start rejected", applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, h.scanner.Status())
}

func (h *ScannerHandler) Stop(c echo.Context) error {
	if err := h.scanner.Stop(); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, h.scanner.Status())
}

func (h *ScannerHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scanner.Status())
}

func (h *ScannerHandler) Signals(c echo.Context) error {
	signals := h.scanner.LatestSignals()
	if sym := strings.ToUpper(c.QueryParam("symbol")); sym != "" {
		kept := signals[:0]
		for _, s := range signals {
			if s.Symbol == sym {
				kept = append(kept, s)
			}
		}
		signals = kept
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *ScannerHandler) Evaluate(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":evaluate", 10, 2) {
		return xhttp.AppErrorResponse(c, errRateLimited)
	}
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg := h.baseConfig()
	cfg.Timeframe = req.Timeframe
	cfg.Timeframes = []int{req.Timeframe}
	cfg.Sensitivity = req.Sensitivity

	sig, outcome, err := h.scanner.EvaluateOnce(c.Request().Context(), req.Symbol, cfg)
	if err != nil {
		h.l.Error("evaluate failed", applogger.Symbol(req.Symbol), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, EvaluateResponse{
		Symbol:  strings.ToUpper(req.Symbol),
		Outcome: outcome,
		Signal:  sig,
	})
}

func (h *ScannerHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal history is not enabled"))
	}
	symbol := strings.ToUpper(c.QueryParam("symbol"))
	limit := xhttp.QueryInt(c, "limit", 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := h.history.Recent(c.Request().Context(), symbol, limit)
	if err != nil {
		h.l.Error("signal history query failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("signal history unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
