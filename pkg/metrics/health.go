package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Component names tracked by the health registry
const (
	ComponentRaft      = "raft"
	ComponentStorage   = "storage"
	ComponentAPI       = "api"
	ComponentConnector = "connector"
	ComponentScheduler = "scheduler"
)

// Overall states reported by GetHealth and GetReadiness
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// readinessGate lists the components that must be healthy before the daemon
// accepts work. A failing connector makes the process unhealthy, not unready.
var readinessGate = []string{ComponentRaft, ComponentStorage, ComponentAPI}

// ComponentReport is the last known state of one component
type ComponentReport struct {
	Healthy bool      `json:"healthy"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`             // last healthy/unhealthy transition
	Strikes int       `json:"strikes,omitempty"` // consecutive unhealthy reports
}

// HealthStatus is the document served by /health and /ready
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentReport `json:"components,omitempty"`
	Message    string                     `json:"message,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
}

// ComponentHealthy mirrors the registry as a gauge so alerts do not need to
// scrape /health
var ComponentHealthy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "confsync_component_healthy",
		Help: "1 when the component last reported healthy, 0 otherwise",
	},
	[]string{"component"},
)

type registry struct {
	mu         sync.RWMutex
	components map[string]ComponentReport
	started    time.Time
	version    string
	now        func() time.Time
}

var health = newRegistry(time.Now)

func newRegistry(now func() time.Time) *registry {
	return &registry{
		components: make(map[string]ComponentReport),
		started:    now(),
		now:        now,
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// RegisterComponent starts tracking name with a fresh report
func RegisterComponent(name string, healthy bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()

	report := ComponentReport{Healthy: healthy, Message: message, Since: health.now()}
	if !healthy {
		report.Strikes = 1
	}
	health.components[name] = report
	ComponentHealthy.WithLabelValues(name).Set(boolToFloat(healthy))
}

// UpdateComponent records a new report for name. Since only moves when the
// component flips between healthy and unhealthy.
func UpdateComponent(name string, healthy bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()

	prev, ok := health.components[name]
	report := ComponentReport{Healthy: healthy, Message: message, Since: prev.Since}
	if !ok || prev.Healthy != healthy {
		report.Since = health.now()
	}
	if !healthy {
		report.Strikes = prev.Strikes + 1
	}
	health.components[name] = report
	ComponentHealthy.WithLabelValues(name).Set(boolToFloat(healthy))
}

// GetHealth reports every registered component. Any unhealthy component
// makes the process unhealthy.
func GetHealth() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	status := health.snapshot(StatusHealthy)
	var failing []string
	for name, report := range status.Components {
		if !report.Healthy {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		status.Status = StatusUnhealthy
		status.Message = "unhealthy: " + joinNames(failing)
	}
	return status
}

// GetReadiness only looks at the readiness gate. A gate component that never
// registered counts as not ready.
func GetReadiness() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	status := health.snapshot(StatusReady)
	status.Components = make(map[string]ComponentReport, len(readinessGate))
	for _, name := range readinessGate {
		report, ok := health.components[name]
		if !ok {
			status.Status = StatusNotReady
			status.Message = "waiting for " + name + " initialization"
			report = ComponentReport{Message: "not registered"}
		} else if !report.Healthy && status.Status == StatusReady {
			status.Status = StatusNotReady
			status.Message = "waiting for " + name
		}
		status.Components[name] = report
	}
	return status
}

// Uptime returns how long the process has been running
func Uptime() time.Duration {
	health.mu.RLock()
	defer health.mu.RUnlock()
	return health.now().Sub(health.started)
}

// snapshot copies the registry; callers hold the read lock
func (r *registry) snapshot(status string) HealthStatus {
	components := make(map[string]ComponentReport, len(r.components))
	for name, report := range r.components {
		components[name] = report
	}
	now := r.now()
	return HealthStatus{
		Status:     status,
		Timestamp:  now,
		Components: components,
		Version:    r.version,
		Uptime:     now.Sub(r.started).Round(time.Second).String(),
	}
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
