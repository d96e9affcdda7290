package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// StalenessFactor is how many poll intervals may pass without a successful
// cycle before the poller is reported unhealthy.
const StalenessFactor = 3

// PollStatus reports when the view state was last refreshed.
type PollStatus interface {
	LastSuccess() time.Time
}

type HealthChecker struct {
	poller   PollStatus
	interval time.Duration
	started  time.Time
	now      func() time.Time
	logger   *logrus.Logger
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func NewHealthChecker(poller PollStatus, interval time.Duration, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		poller:   poller,
		interval: interval,
		started:  time.Now(),
		now:      time.Now,
		logger:   logger,
	}
}

func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := h.CheckHealth(ctx)

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "healthy" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}

func (h *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	services := make(map[string]string)
	overallStatus := "healthy"

	// Check poller freshness
	if err := h.checkPoller(); err != nil {
		services["poller"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
		h.logger.WithError(err).Warn("Poller health check failed")
	} else {
		services["poller"] = "healthy"
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: h.now(),
		Services:  services,
	}
}

func (h *HealthChecker) checkPoller() error {
	now := h.now()
	limit := StalenessFactor * h.interval

	last := h.poller.LastSuccess()
	if last.IsZero() {
		if waited := now.Sub(h.started); waited > limit {
			return fmt.Errorf("no successful poll since start %s ago", waited.Truncate(time.Second))
		}
		return nil
	}
	if age := now.Sub(last); age > limit {
		return fmt.Errorf("last successful poll %s ago", age.Truncate(time.Second))
	}
	return nil
}
