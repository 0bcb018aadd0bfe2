package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ValidateControllerConfig aggregates every configuration problem into
// a single error instead of failing on the first one, so an operator
// fixing a misconfigured deploy sees the whole list at once.
func ValidateControllerConfig(cfg *ControllerConfig) error {
	var result *multierror.Error

	if len(cfg.Backends) == 0 {
		result = multierror.Append(result, fmt.Errorf("BACKENDS must name at least one backend"))
	}
	for _, backend := range cfg.Backends {
		limits := cfg.LimitsFor(backend)
		if limits.MaxWorkers <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s_MAX_WORKERS must be positive, got %d", backend, limits.MaxWorkers))
		}
		if limits.MaxDBWorkers < 0 {
			result = multierror.Append(result, fmt.Errorf("%s_MAX_DB_WORKERS must not be negative, got %d", backend, limits.MaxDBWorkers))
		}
		if limits.JobServerToken == "" {
			result = multierror.Append(result, fmt.Errorf("%s_JOB_SERVER_TOKEN must be set", backend))
		}
	}
	for _, backend := range cfg.MaintenanceBackends {
		if !contains(cfg.Backends, backend) {
			result = multierror.Append(result, fmt.Errorf("MAINTENANCE_ENABLED_BACKENDS names unknown backend %q", backend))
		}
	}
	if cfg.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("POLL_INTERVAL must be positive"))
	}
	if cfg.TickPollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("TICK_POLL_INTERVAL must be positive"))
	}
	if cfg.Level4MaxFilesize <= 0 {
		result = multierror.Append(result, fmt.Errorf("LEVEL4_MAX_FILESIZE must be positive"))
	}
	if cfg.Level4MaxCSVRows <= 0 {
		result = multierror.Append(result, fmt.Errorf("LEVEL4_MAX_CSV_ROWS must be positive"))
	}
	if cfg.DatabasePath == "" {
		result = multierror.Append(result, fmt.Errorf("controller database path must be set"))
	}

	return result.ErrorOrNil()
}

// ValidateAgentConfig aggregates every Agent configuration problem.
func ValidateAgentConfig(cfg *AgentConfig) error {
	var result *multierror.Error

	if cfg.Backend == "" {
		result = multierror.Append(result, fmt.Errorf("BACKEND must be set"))
	}
	if cfg.TaskAPIEndpoint == "" {
		result = multierror.Append(result, fmt.Errorf("TASK_API_ENDPOINT must be set"))
	}
	if cfg.TaskAPIToken == "" {
		result = multierror.Append(result, fmt.Errorf("TASK_API_TOKEN must be set"))
	}
	if cfg.StatsPollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("STATS_POLL_INTERVAL must be positive"))
	}
	if cfg.WorkspaceRoot == "" && !cfg.UsingDummyBackend {
		result = multierror.Append(result, fmt.Errorf("WORKSPACE_ROOT must be set unless USING_DUMMY_DATA_BACKEND"))
	}

	return result.ErrorOrNil()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
