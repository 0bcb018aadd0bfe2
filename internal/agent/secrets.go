package agent

import "github.com/RevCBH/ragweb/internal/model"

// ConfiguredSecrets resolves DBSecrets from the AgentConfig.DatabaseURLs
// map populated by config.ApplyAgentEnvOverrides (the "{NAME}_DATABASE_URL"
// env var family, spec.md §6.5), never handed to the executor before
// PREPARED so they never land in the workspace image (spec.md §4.4.1).
type ConfiguredSecrets struct {
	URLs map[string]string
}

var _ DBSecrets = ConfiguredSecrets{}

// EnvFor returns the single DATABASE_URL env var for databaseName, or
// nil if that database was never configured.
func (s ConfiguredSecrets) EnvFor(databaseName model.DatabaseName) map[string]string {
	url, ok := s.URLs[string(databaseName)]
	if !ok {
		return nil
	}
	return map[string]string{"DATABASE_URL": url}
}
