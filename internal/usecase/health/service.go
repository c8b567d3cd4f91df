package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a failing optional component.
	Degraded Status = "degraded"
	// Unhealthy indicates the index store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// StoreCheck is the name of the index store check.
const StoreCheck = "store"

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	store    Pinger
	optional map[string]Pinger
}

// New creates a Service for the index store.
func New(store Pinger) *Service {
	return &Service{store: store, optional: make(map[string]Pinger)}
}

// WithCheck adds an optional component. A nil pinger is ignored.
func (s *Service) WithCheck(name string, p Pinger) *Service {
	if p != nil {
		s.optional[name] = p
	}
	return s
}

// Names returns the configured check names in order.
func (s *Service) Names() []string {
	names := []string{StoreCheck}
	opt := make([]string, 0, len(s.optional))
	for n := range s.optional {
		opt = append(opt, n)
	}
	sort.Strings(opt)
	return append(names, opt...)
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.optional)+1)
	checks[StoreCheck] = run(ctx, s.store)

	status := Healthy
	for name, p := range s.optional {
		checks[name] = run(ctx, p)
		if checks[name] == CheckError {
			status = Degraded
		}
	}
	if checks[StoreCheck] == CheckError {
		status = Unhealthy
	}
	return Report{Status: status, Checks: checks}
}

func run(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
