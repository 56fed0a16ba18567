package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// LastBuild summarizes the most recent build in a health response.
type LastBuild struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	FinishedAt time.Time `json:"finished_at"`
	Commit     string    `json:"commit,omitempty"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Building  bool         `json:"building"`
	Builds    int          `json:"builds"`
	LastBuild *LastBuild   `json:"last_build,omitempty"`
}

// Health reports degraded while the most recent build failed.
func (d *Daemon) Health() *HealthResponse {
	d.mu.RLock()
	defer d.mu.RUnlock()

	now := time.Now()
	resp := &HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: now.UTC(),
		Version:   version.Version,
		Building:  d.building.Load(),
		Builds:    d.builds,
	}
	if !d.startedAt.IsZero() {
		resp.Uptime = now.Sub(d.startedAt).Truncate(time.Second).String()
	}
	if r := d.lastReport; r != nil {
		resp.LastBuild = &LastBuild{
			ID:         r.ID,
			Trigger:    r.Trigger,
			Outcome:    string(r.Outcome),
			ExitCode:   r.ExitCode,
			FinishedAt: r.StartedAt.Add(r.Duration).UTC(),
			Commit:     r.Commit,
		}
		if !r.Succeeded() {
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	if d.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	}
	mux.HandleFunc("/health", d.handleHealth)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.Health())
}
