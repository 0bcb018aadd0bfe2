package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultControllerConfigIsInvalidWithoutBackends(t *testing.T) {
	cfg := DefaultControllerConfig()
	err := ValidateControllerConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKENDS")
}

func TestControllerEnvOverridesPopulateBackendLimits(t *testing.T) {
	t.Setenv("BACKENDS", "tpp, emis")
	t.Setenv("TPP_MAX_WORKERS", "20")
	t.Setenv("TPP_JOB_SERVER_TOKEN", "tpp-secret")
	t.Setenv("EMIS_MAX_WORKERS", "5")
	t.Setenv("EMIS_JOB_SERVER_TOKEN", "emis-secret")

	cfg := DefaultControllerConfig()
	ApplyControllerEnvOverrides(cfg)

	assert.Equal(t, []string{"tpp", "emis"}, cfg.Backends)
	assert.Equal(t, 20, cfg.LimitsFor("tpp").MaxWorkers)
	assert.Equal(t, "tpp-secret", cfg.LimitsFor("tpp").JobServerToken)
	assert.Equal(t, 5, cfg.LimitsFor("emis").MaxWorkers)

	require.NoError(t, ValidateControllerConfig(cfg))
}

func TestMaintenanceBackendsMustBeKnown(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.Backends = []string{"tpp"}
	cfg.Limits["tpp"] = BackendLimits{MaxWorkers: 1, JobServerToken: "x"}
	cfg.MaintenanceBackends = []string{"ghost"}

	err := ValidateControllerConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLimitsForFallsBackToDefaults(t *testing.T) {
	cfg := DefaultControllerConfig()
	limits := cfg.LimitsFor("unconfigured")
	assert.Equal(t, DefaultMaxWorkers, limits.MaxWorkers)
	assert.Equal(t, DefaultMaxDBWorkers, limits.MaxDBWorkers)
}

func TestRequiresMaintenance(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.MaintenanceBackends = []string{"tpp"}
	assert.True(t, cfg.RequiresMaintenance("tpp"))
	assert.False(t, cfg.RequiresMaintenance("emis"))
}

func TestDefaultAgentConfigRequiresCoreFields(t *testing.T) {
	cfg := DefaultAgentConfig()
	err := ValidateAgentConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND")
	assert.Contains(t, err.Error(), "TASK_API_ENDPOINT")
}

func TestAgentEnvOverridesPopulateDatabaseURLs(t *testing.T) {
	t.Setenv("BACKEND", "tpp")
	t.Setenv("TASK_API_ENDPOINT", "https://controller.invalid")
	t.Setenv("TASK_API_TOKEN", "token")
	t.Setenv("WORKSPACE_ROOT", "/workspaces")
	t.Setenv("DEFAULT_DATABASE_URL", "postgres://default")
	t.Setenv("INCLUDE_T1OO_DATABASE_URL", "postgres://t1oo")

	cfg := DefaultAgentConfig()
	ApplyAgentEnvOverrides(cfg)

	require.NoError(t, ValidateAgentConfig(cfg))
	assert.Equal(t, "postgres://default", cfg.DatabaseURLs["default"])
	assert.Equal(t, "postgres://t1oo", cfg.DatabaseURLs["include_t1oo"])
}

func TestUsingDummyBackendWaivesWorkspaceRoot(t *testing.T) {
	cfg := DefaultAgentConfig()
	cfg.Backend = "dummy"
	cfg.TaskAPIEndpoint = "https://controller.invalid"
	cfg.TaskAPIToken = "token"
	cfg.UsingDummyBackend = true

	assert.NoError(t, ValidateAgentConfig(cfg))
}
