package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// controllerEnvOverrides maps simple scalar env vars onto
// ControllerConfig fields, applied after DefaultControllerConfig().
var controllerEnvOverrides = []struct {
	envVar string
	apply  func(*ControllerConfig, string)
}{
	{"BACKENDS", func(c *ControllerConfig, v string) { c.Backends = splitCSV(v) }},
	{"MAINTENANCE_ENABLED_BACKENDS", func(c *ControllerConfig, v string) { c.MaintenanceBackends = splitCSV(v) }},
	{"ALLOWED_GITHUB_ORGS", func(c *ControllerConfig, v string) { c.AllowedGitHubOrgs = splitCSV(v) }},
	{"POLL_INTERVAL", func(c *ControllerConfig, v string) { c.PollInterval = parseDurationSeconds(v, c.PollInterval) }},
	{"TICK_POLL_INTERVAL", func(c *ControllerConfig, v string) { c.TickPollInterval = parseDurationSeconds(v, c.TickPollInterval) }},
	{"MAINTENANCE_POLL_INTERVAL", func(c *ControllerConfig, v string) {
		c.MaintenancePollInterval = parseDurationSeconds(v, c.MaintenancePollInterval)
	}},
	{"JOB_LOOP_INTERVAL", func(c *ControllerConfig, v string) { c.JobLoopInterval = parseDurationSeconds(v, c.JobLoopInterval) }},
	{"DEFAULT_JOB_CPU_COUNT", func(c *ControllerConfig, v string) { c.DefaultJobCPUCount = parseFloat(v, c.DefaultJobCPUCount) }},
	{"DEFAULT_JOB_MEMORY_LIMIT", func(c *ControllerConfig, v string) { c.DefaultJobMemory = v }},
	{"LEVEL4_MAX_FILESIZE", func(c *ControllerConfig, v string) { c.Level4MaxFilesize = parseInt64(v, c.Level4MaxFilesize) }},
	{"LEVEL4_MAX_CSV_ROWS", func(c *ControllerConfig, v string) { c.Level4MaxCSVRows = parseInt64(v, c.Level4MaxCSVRows) }},
	{"CONTROLLER_DB_PATH", func(c *ControllerConfig, v string) { c.DatabasePath = v }},
	{"CONTROLLER_LISTEN_ADDR", func(c *ControllerConfig, v string) { c.ListenAddr = v }},
	{"LOG_LEVEL", func(c *ControllerConfig, v string) { c.LogLevel = v }},
}

// agentEnvOverrides maps simple scalar env vars onto AgentConfig fields.
var agentEnvOverrides = []struct {
	envVar string
	apply  func(*AgentConfig, string)
}{
	{"BACKEND", func(c *AgentConfig, v string) { c.Backend = v }},
	{"TASK_API_ENDPOINT", func(c *AgentConfig, v string) { c.TaskAPIEndpoint = v }},
	{"TASK_API_TOKEN", func(c *AgentConfig, v string) { c.TaskAPIToken = v }},
	{"USING_DUMMY_DATA_BACKEND", func(c *AgentConfig, v string) { c.UsingDummyBackend = v == "true" || v == "1" }},
	{"STATS_POLL_INTERVAL", func(c *AgentConfig, v string) { c.StatsPollInterval = parseDurationSeconds(v, c.StatsPollInterval) }},
	{"WORKSPACE_ROOT", func(c *AgentConfig, v string) { c.WorkspaceRoot = v }},
	{"AGENT_METRICS_DB_PATH", func(c *AgentConfig, v string) { c.MetricsDatabasePath = v }},
	{"LOG_LEVEL", func(c *AgentConfig, v string) { c.LogLevel = v }},
}

// ApplyControllerEnvOverrides modifies cfg in place with environment
// variable values, including the dynamic "{BACKEND}_..." family that
// cannot live in a static table (spec.md §6.5).
func ApplyControllerEnvOverrides(cfg *ControllerConfig) {
	for _, override := range controllerEnvOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
	applyBackendLimitOverrides(cfg)
}

// applyBackendLimitOverrides reads "{BACKEND}_MAX_WORKERS",
// "{BACKEND}_MAX_DB_WORKERS", "{BACKEND}_JOB_SERVER_TOKEN" and
// "{BACKEND}_CLIENT_TOKENS" for every configured backend.
func applyBackendLimitOverrides(cfg *ControllerConfig) {
	if cfg.Limits == nil {
		cfg.Limits = make(map[string]BackendLimits)
	}
	for _, backend := range cfg.Backends {
		limits := cfg.LimitsFor(backend)
		prefix := strings.ToUpper(backend) + "_"

		if v := os.Getenv(prefix + "MAX_WORKERS"); v != "" {
			limits.MaxWorkers = int(parseInt64(v, int64(limits.MaxWorkers)))
		}
		if v := os.Getenv(prefix + "MAX_DB_WORKERS"); v != "" {
			limits.MaxDBWorkers = int(parseInt64(v, int64(limits.MaxDBWorkers)))
		}
		if v := os.Getenv(prefix + "JOB_SERVER_TOKEN"); v != "" {
			limits.JobServerToken = v
		}
		if v := os.Getenv(prefix + "CLIENT_TOKENS"); v != "" {
			limits.ClientTokens = splitCSV(v)
		}

		cfg.Limits[backend] = limits
	}
}

// ApplyAgentEnvOverrides modifies cfg in place with environment
// variable values, including the per-database URL family
// ("{DATABASE_NAME}_DATABASE_URL", for DEFAULT and INCLUDE_T1OO).
func ApplyAgentEnvOverrides(cfg *AgentConfig) {
	for _, override := range agentEnvOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
	if cfg.DatabaseURLs == nil {
		cfg.DatabaseURLs = make(map[string]string)
	}
	for _, name := range []string{"DEFAULT", "INCLUDE_T1OO"} {
		if v := os.Getenv(name + "_DATABASE_URL"); v != "" {
			cfg.DatabaseURLs[strings.ToLower(name)] = v
		}
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationSeconds(v string, fallback time.Duration) time.Duration {
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

func parseFloat(v string, fallback float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt64(v string, fallback int64) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
