package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
project:
  project_id: my-project
  region: us-central1
  credentials_json: ./credentials/key.json
  bucket_name: my-models
serving:
  model_name: timesfm-2.0-500m-pytorch
  serve_docker_uri: us-docker.pkg.dev/serving/timesfm.cu121
  model_display_name: timesfm
  accelerator_count: 2
  use_dedicated_endpoint: true
  deploy_request_timeout: 600
invoke:
  context_len: 96
  horizon_len: 12
hub:
  token_file: ./credentials/hf.yml
  models:
    timesfm:
      repo_id: google/timesfm-2.0-500m-pytorch
      gcs_prefix: timesfm
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "my-project", cfg.Project.ProjectID)
	assert.Equal(t, "my-models", cfg.Project.BucketName)
	assert.Equal(t, 2, cfg.Serving.AcceleratorCount)
	assert.True(t, cfg.Serving.UseDedicatedEndpoint)
	assert.Equal(t, 10*time.Minute, cfg.Serving.DeployTimeout())

	// explicit values win over defaults, defaults fill the rest
	assert.Equal(t, 96, cfg.Invoke.ContextLen)
	assert.Equal(t, 12, cfg.Invoke.HorizonLen)
	assert.Equal(t, 128, cfg.Invoke.BatchSize)
	assert.Equal(t, "g2-standard-16", cfg.Serving.MachineType)

	require.Contains(t, cfg.Hub.Models, "timesfm")
	assert.Equal(t, "google/timesfm-2.0-500m-pytorch", cfg.Hub.Models["timesfm"].RepoID)
}

func TestLoadMissingRequired(t *testing.T) {
	testData := map[string]string{
		"no project id": `
project:
  region: us-central1
  bucket_name: b
`,
		"no region": `
project:
  project_id: p
  bucket_name: b
`,
		"no bucket": `
project:
  project_id: p
  region: us-central1
`,
	}

	for name, contents := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TIMESFM_PROJECT_PROJECT_ID", "env-project")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-project", cfg.Project.ProjectID)
}
