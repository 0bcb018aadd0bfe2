// Package config holds the per-process Controller and Agent
// configuration, loaded from defaults and overridden by environment
// variables (spec.md §6.5).
package config

import "time"

// BackendLimits is the per-backend worker/capacity configuration named
// by the "{BACKEND}_..." env var family.
type BackendLimits struct {
	MaxWorkers      int
	MaxDBWorkers    int
	JobServerToken  string
	ClientTokens    []string
	DefaultCPUCount float64
	DefaultMemory   string
}

// ControllerConfig is the Controller process's full configuration.
type ControllerConfig struct {
	Backends []string
	Limits   map[string]BackendLimits

	PollInterval            time.Duration
	TickPollInterval        time.Duration
	MaintenancePollInterval time.Duration
	MaintenanceBackends     []string
	JobLoopInterval         time.Duration

	DefaultJobCPUCount float64
	DefaultJobMemory   string

	AllowedGitHubOrgs []string

	Level4MaxFilesize int64
	Level4MaxCSVRows  int64

	DatabasePath string
	ListenAddr   string
	LogLevel     string
}

// AgentConfig is the Agent process's full configuration.
type AgentConfig struct {
	Backend             string
	TaskAPIEndpoint     string
	TaskAPIToken        string
	UsingDummyBackend   bool
	DatabaseURLs        map[string]string
	StatsPollInterval   time.Duration
	WorkspaceRoot       string
	MetricsDatabasePath string
	LogLevel            string
}

// LimitsFor returns the configured BackendLimits for backend, falling
// back to the package defaults when the backend was never overridden.
func (c *ControllerConfig) LimitsFor(backend string) BackendLimits {
	if l, ok := c.Limits[backend]; ok {
		return l
	}
	return BackendLimits{
		MaxWorkers:      DefaultMaxWorkers,
		MaxDBWorkers:    DefaultMaxDBWorkers,
		DefaultCPUCount: c.DefaultJobCPUCount,
		DefaultMemory:   c.DefaultJobMemory,
	}
}

// RequiresMaintenance reports whether backend participates in DBSTATUS
// maintenance polling (spec.md §4.3.5).
func (c *ControllerConfig) RequiresMaintenance(backend string) bool {
	for _, b := range c.MaintenanceBackends {
		if b == backend {
			return true
		}
	}
	return false
}
