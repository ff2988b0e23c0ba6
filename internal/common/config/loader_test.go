package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: scholarships
    user: app
  redis:
    address: localhost:6379
workers:
  submit-application:
    enabled: true
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "rules", cfg.Scoring.Engine)
	assert.Equal(t, "/evaluar", cfg.Scoring.Remote.Path)
	assert.Equal(t, ResubmitResumePrior, cfg.Evaluation.ResubmitPolicy)
	assert.Equal(t, 4, cfg.Evaluation.BatchConcurrency)
	assert.Equal(t, "estudiante_becado", cfg.Auth.Keycloak.ScholarshipRole)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	wcfg := GetWorkerConfig(cfg, "submit-application")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 5, wcfg.MaxJobsActive)
	assert.Equal(t, 30000, wcfg.Timeout)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_SCHOLARSHIP_DB_PASSWORD", "s3cret")
	body := `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: scholarships
    user: app
    password: ${TEST_SCHOLARSHIP_DB_PASSWORD}
  redis:
    address: localhost:6379
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n  redis:\n    address: r\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "remote scorer without url",
			body:    minimalConfig + "scoring:\n  engine: remote\n",
			wantErr: "scoring.remote.base_url",
		},
		{
			name:    "unknown resubmit policy",
			body:    minimalConfig + "evaluation:\n  resubmit_policy: sometimes\n",
			wantErr: "evaluation.resubmit_policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsWorkerEnabled_DefaultsToTrue(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"approve-selected": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "approve-selected"))
	assert.True(t, IsWorkerEnabled(cfg, "reject-remaining"))
}
