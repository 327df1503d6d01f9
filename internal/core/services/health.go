package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// defaultProbeTimeout bounds each dependency probe.
const defaultProbeTimeout = 5 * time.Second

// Probe checks one dependency.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthService probes dependencies concurrently.
type HealthService struct {
	probes  []Probe
	timeout time.Duration
}

// NewHealthService creates a health service over the given probes.
func NewHealthService(probes ...Probe) *HealthService {
	return &HealthService{probes: probes, timeout: defaultProbeTimeout}
}

// Check runs every probe and reports them in registration order.
func (s *HealthService) Check(ctx context.Context) domain.HealthReport {
	components := make([]domain.ComponentHealth, len(s.probes))

	var wg sync.WaitGroup
	for i, probe := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			c := domain.ComponentHealth{Name: probe.Name, Healthy: true, Detail: "ok"}
			if err := probe.Ping(probeCtx); err != nil {
				c.Healthy = false
				c.Detail = err.Error()
			}
			components[i] = c
		}()
	}
	wg.Wait()

	return domain.HealthReport{Components: components}
}
