package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/broker"
	xhttp "SignalScan/pkg/http"
	applogger "SignalScan/pkg/logger"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

type BrokerInfo struct {
	Available []broker.Type   `json:"available"`
	Active    broker.Type     `json:"active"`
	Name      string          `json:"name"`
	Connected bool            `json:"connected"`
	Balance   *broker.Balance `json:"balance,omitempty"`
}

type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

type SystemHandler struct {
	registry *broker.Registry
	active   broker.Broker
	logs     *applogger.LogCollector
	checks   map[string]HealthCheck
	l        *applogger.Logger
}

// NewSystemHandler serves broker info, collected logs and health. logs may
// be nil when collection is disabled.
func NewSystemHandler(registry *broker.Registry, active broker.Broker, logs *applogger.LogCollector,
	checks map[string]HealthCheck, l *applogger.Logger) *SystemHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SystemHandler{registry: registry, active: active, logs: logs, checks: checks, l: l}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/brokers", h.Brokers)
	g.GET("/logs", h.Logs)
}

func (h *SystemHandler) Brokers(c echo.Context) error {
	info := BrokerInfo{
		Available: h.registry.Available(),
		Active:    h.active.Type(),
		Name:      h.active.Name(),
		Connected: h.active.IsConnected(),
	}
	if info.Connected {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if bal, err := h.active.Balance(ctx); err == nil {
			info.Balance = &bal
		} else {
			h.l.Debug("broker balance unavailable", applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, info)
}

func (h *SystemHandler) Logs(c echo.Context) error {
	if h.logs == nil {
		return xhttp.ListResponse(c, []applogger.AggregatedLogEntry{}, 0)
	}
	entries := h.logs.Snapshot()
	if lvl := c.QueryParam("level"); lvl != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Level == lvl {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *SystemHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	report := HealthReport{Status: "ok", Checks: map[string]string{}, Time: time.Now().UTC()}
	if h.active.IsConnected() {
		report.Checks["broker"] = "ok"
	} else {
		report.Checks["broker"] = models.ErrConnectionLost.Error()
		report.Status = "degraded"
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			report.Checks[name] = err.Error()
			report.Status = "degraded"
			h.l.Warn("health check failed", applogger.String("check", name), applogger.Error(err))
			continue
		}
		report.Checks[name] = "ok"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, status, report)
}
