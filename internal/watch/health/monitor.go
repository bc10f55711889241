package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/vitality/internal/infra/rpc/provider"
)

// Outcome is the result of one loop iteration.
type Outcome struct {
	Err      error
	Slackers int
	// Next is the delay until the following iteration.
	Next time.Duration
}

// Recorder receives loop outcomes.
type Recorder interface {
	Record(loop string, o Outcome)
}

// NodeSource exposes the transport health of the node connection.
type NodeSource interface {
	GetName() string
	GetHealth() provider.HealthStatus
}

// CheckFunc pings a backing service.
type CheckFunc func(ctx context.Context) error

// dependencyTimeout bounds each dependency check.
const dependencyTimeout = 3 * time.Second

// Monitor aggregates health status from the background loops.
type Monitor struct {
	node      NodeSource
	deps      map[string]CheckFunc
	loops     map[string]*LoopStatus
	listeners []func(loop string, status SystemStatus)
	now       func() time.Time
	mu        sync.RWMutex
}

// NewMonitor creates a new health monitor. node may be nil.
func NewMonitor(node NodeSource) *Monitor {
	return &Monitor{
		node:  node,
		deps:  make(map[string]CheckFunc),
		loops: make(map[string]*LoopStatus),
		now:   time.Now,
	}
}

// Register makes loop visible before its first iteration.
func (m *Monitor) Register(loop string) {
	m.mu.Lock()
	if _, ok := m.loops[loop]; !ok {
		m.loops[loop] = &LoopStatus{Loop: loop, Status: StatusHealthy}
	}
	listeners := m.listeners
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(loop, StatusHealthy)
	}
}

// AddDependency adds a backing service checked on every CheckHealth. A
// failing dependency degrades the system.
func (m *Monitor) AddDependency(name string, check CheckFunc) {
	m.mu.Lock()
	m.deps[name] = check
	m.mu.Unlock()
}

// OnChange registers fn to be called after every recorded outcome.
func (m *Monitor) OnChange(fn func(loop string, status SystemStatus)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Record updates the status of loop.
func (m *Monitor) Record(loop string, o Outcome) {
	m.mu.Lock()
	ls, ok := m.loops[loop]
	if !ok {
		ls = &LoopStatus{Loop: loop}
		m.loops[loop] = ls
	}

	now := m.now()
	ls.Runs++
	ls.LastAttempt = now
	if o.Next > 0 {
		ls.Interval = o.Next.String()
	}
	if o.Err != nil {
		ls.ConsecutiveFailures++
		ls.LastError = o.Err.Error()
	} else {
		ls.ConsecutiveFailures = 0
		ls.LastSuccess = now
		ls.LastError = ""
		ls.Slackers = o.Slackers
	}
	ls.Status = loopStatus(ls.ConsecutiveFailures)
	status := ls.Status
	listeners := m.listeners
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(loop, status)
	}
}

// Loop returns the status of one loop.
func (m *Monitor) Loop(loop string) (LoopStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ls, ok := m.loops[loop]
	if !ok {
		return LoopStatus{}, false
	}
	return *ls, true
}

// Loops returns the registered loop names in order.
func (m *Monitor) Loops() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.loops))
	for name := range m.loops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth builds the current report. The worst loop wins; an
// unavailable node transport or a failing dependency is at least degraded.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.RLock()
	report := HealthReport{
		SystemStatus: StatusHealthy,
		Loops:        make(map[string]LoopStatus, len(m.loops)),
	}
	for name, ls := range m.loops {
		report.Loops[name] = *ls
		report.SystemStatus = worst(report.SystemStatus, ls.Status)
	}
	deps := make(map[string]CheckFunc, len(m.deps))
	for name, check := range m.deps {
		deps[name] = check
	}
	m.mu.RUnlock()

	if len(deps) > 0 {
		report.Dependencies = make(map[string]DependencyStatus, len(deps))
		for name, check := range deps {
			cctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
			err := check(cctx)
			cancel()

			status := DependencyStatus{Healthy: err == nil}
			if err != nil {
				status.Error = err.Error()
				report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			}
			report.Dependencies[name] = status
		}
	}

	if m.node != nil {
		h := m.node.GetHealth()
		report.Node = &NodeHealth{
			Transport: m.node.GetName(),
			Available: h.Available,
			ErrorRate: h.ErrorRate,
			Requests:  h.Requests,
			LatencyMS: h.Latency.Milliseconds(),
		}
		if !h.Available {
			report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
		}
	}
	return report
}

// loopsStatus is the worst loop status. Only loops can be critical, so
// it decides the serving state without running dependency checks.
func (m *Monitor) loopsStatus() SystemStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := StatusHealthy
	for _, ls := range m.loops {
		status = worst(status, ls.Status)
	}
	return status
}

func loopStatus(failures int) SystemStatus {
	switch {
	case failures >= 3:
		return StatusCritical
	case failures > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
