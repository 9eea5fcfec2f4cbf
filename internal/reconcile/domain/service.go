package domain

import "context"

type Service interface {
	// Sweep compares every tenant's active mirrored resources against the
	// provider and schedules cleanup for anything that no longer exists
	// upstream. Tenants are isolated: one tenant's failure never stops the
	// sweep for the rest.
	Sweep(ctx context.Context) (Summary, error)
}

// Summary aggregates one sweep run.
type Summary struct {
	TenantsChecked   int `json:"tenants_checked"`
	ResourcesChecked int `json:"resources_checked"`
	DriftDetected    int `json:"drift_detected"`
	JobsScheduled    int `json:"jobs_scheduled"`
	TenantErrors     int `json:"tenant_errors"`
}
