package config

import "time"

const (
	DefaultMaxWorkers   = 10
	DefaultMaxDBWorkers = 2

	DefaultPollInterval            = 5 * time.Second
	DefaultTickPollInterval        = time.Second
	DefaultMaintenancePollInterval = 5 * time.Minute
	DefaultJobLoopInterval         = time.Second

	DefaultJobCPUCount    = 2.0
	DefaultJobMemoryLimit = "4G"

	DefaultLevel4MaxFilesize = int64(16 * 1024 * 1024)
	DefaultLevel4MaxCSVRows  = int64(5000)

	DefaultControllerDBPath = "controller.db"
	DefaultControllerAddr   = ":8000"
	DefaultLogLevel         = "info"

	DefaultStatsPollInterval  = 30 * time.Second
	DefaultAgentMetricsDBPath = "agent-metrics.db"
)

// DefaultControllerConfig returns a ControllerConfig with every field
// at its documented default (spec.md §6.5), before env overrides are
// applied.
func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		Backends:                nil,
		Limits:                  make(map[string]BackendLimits),
		PollInterval:            DefaultPollInterval,
		TickPollInterval:        DefaultTickPollInterval,
		MaintenancePollInterval: DefaultMaintenancePollInterval,
		MaintenanceBackends:     nil,
		JobLoopInterval:         DefaultJobLoopInterval,
		DefaultJobCPUCount:      DefaultJobCPUCount,
		DefaultJobMemory:        DefaultJobMemoryLimit,
		Level4MaxFilesize:       DefaultLevel4MaxFilesize,
		Level4MaxCSVRows:        DefaultLevel4MaxCSVRows,
		DatabasePath:            DefaultControllerDBPath,
		ListenAddr:              DefaultControllerAddr,
		LogLevel:                DefaultLogLevel,
	}
}

// DefaultAgentConfig returns an AgentConfig with every field at its
// documented default, before env overrides are applied.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		DatabaseURLs:        make(map[string]string),
		StatsPollInterval:   DefaultStatsPollInterval,
		MetricsDatabasePath: DefaultAgentMetricsDBPath,
		LogLevel:            DefaultLogLevel,
	}
}

// LoadControllerConfig returns DefaultControllerConfig() with env
// overrides applied and validated.
func LoadControllerConfig() (*ControllerConfig, error) {
	cfg := DefaultControllerConfig()
	ApplyControllerEnvOverrides(cfg)
	if err := ValidateControllerConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAgentConfig returns DefaultAgentConfig() with env overrides
// applied and validated.
func LoadAgentConfig() (*AgentConfig, error) {
	cfg := DefaultAgentConfig()
	ApplyAgentEnvOverrides(cfg)
	if err := ValidateAgentConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
