// health.go — /health/live, /health/ready и /metrics.
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/config"
)

const serviceName = "pocketfile"

// Статусы проверок готовности.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — зависимость, от которой зависит готовность сервиса.
type ReadinessChecker interface {
	// Name — ключ в ответе readiness
	Name() string
	// CheckReady возвращает статус ("ok", "degraded", "fail") и пояснение
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	checkers    []ReadinessChecker
	promHandler http.Handler
	startedAt   time.Time
}

// NewHealthHandler создаёт обработчик. nil-элементы пропускаются.
func NewHealthHandler(checkers ...ReadinessChecker) *HealthHandler {
	h := &HealthHandler{promHandler: promhttp.Handler(), startedAt: time.Now()}
	for _, c := range checkers {
		if c != nil {
			h.checkers = append(h.checkers, c)
		}
	}
	return h
}

type healthCheckResult struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Service   string                       `json:"service"`
	Version   string                       `json:"version"`
	Timestamp string                       `json:"timestamp"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive отвечает 200, пока процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	apierrors.WriteRaw(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Service:   serviceName,
		Version:   config.Version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.startedAt).Round(time.Second).String(),
	})
}

// HealthReady опрашивает зависимости параллельно.
// 503 — если хоть одна в статусе fail.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	results := make([]healthCheckResult, len(h.checkers))

	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, msg := c.CheckReady()
			results[i] = healthCheckResult{
				Status:   status,
				Message:  msg,
				Duration: time.Since(start).Round(time.Microsecond).String(),
			}
		}()
	}
	wg.Wait()

	resp := healthReadyResponse{
		Service:   serviceName,
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]healthCheckResult, len(results)),
	}
	statuses := make([]string, 0, len(results))
	for i, c := range h.checkers {
		resp.Checks[c.Name()] = results[i]
		statuses = append(statuses, results[i].Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	apierrors.WriteRaw(w, code, resp)
}

// GetMetrics отдаёт метрики Prometheus.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus: любой fail — fail, иначе любой degraded — degraded.
// Неизвестный статус считается fail.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusOK:
		case statusDegraded:
			result = statusDegraded
		default:
			return statusFail
		}
	}
	return result
}
