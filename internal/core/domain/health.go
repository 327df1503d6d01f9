package domain

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Detail  string
}

// HealthReport aggregates component probes.
type HealthReport struct {
	Components []ComponentHealth
}

// Healthy reports whether every component passed.
func (r HealthReport) Healthy() bool {
	for _, c := range r.Components {
		if !c.Healthy {
			return false
		}
	}
	return true
}
