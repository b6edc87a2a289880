// Package config loads the toolkit configuration into an explicit struct
// that is constructed once at process start and passed into every component
// that needs it. There is no global configuration state.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingField = errors.New("required configuration field is not set")

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Project  ProjectConfig `mapstructure:"project"`
	Serving  ServingConfig `mapstructure:"serving"`
	Invoke   InvokeConfig  `mapstructure:"invoke"`
	Hub      HubConfig     `mapstructure:"hub"`
}

// ProjectConfig identifies the cloud project everything runs in.
type ProjectConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Region          string `mapstructure:"region"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	BucketName      string `mapstructure:"bucket_name"`
}

// ServingConfig describes the model upload and endpoint deployment.
type ServingConfig struct {
	ModelLocation        string `mapstructure:"model_location"`
	ModelName            string `mapstructure:"model_name"`
	ServeDockerURI       string `mapstructure:"serve_docker_uri"`
	ServiceAccount       string `mapstructure:"service_account"`
	ModelDisplayName     string `mapstructure:"model_display_name"`
	MachineType          string `mapstructure:"machine_type"`
	AcceleratorType      string `mapstructure:"accelerator_type"`
	AcceleratorCount     int    `mapstructure:"accelerator_count"`
	DeploySource         string `mapstructure:"deploy_source"`
	UseDedicatedEndpoint bool   `mapstructure:"use_dedicated_endpoint"`
	Horizon              int    `mapstructure:"horizon"`
	TimesFMBackend       string `mapstructure:"timesfm_backend"`
	DeployRequestTimeout int    `mapstructure:"deploy_request_timeout"`
}

// DeployTimeout returns the deploy request timeout as a duration.
func (s ServingConfig) DeployTimeout() time.Duration {
	return time.Duration(s.DeployRequestTimeout) * time.Second
}

// InvokeConfig fixes window and batch geometry for forecast runs.
type InvokeConfig struct {
	ContextLen    int    `mapstructure:"context_len"`
	HorizonLen    int    `mapstructure:"horizon_len"`
	BatchSize     int    `mapstructure:"batch_size"`
	EndpointsFile string `mapstructure:"endpoints_file"`
	OutputDir     string `mapstructure:"output_dir"`
}

// HubConfig describes the model hub snapshots to mirror into object storage.
type HubConfig struct {
	TokenFile string              `mapstructure:"token_file"`
	Models    map[string]HubModel `mapstructure:"models"`
}

type HubModel struct {
	RepoID    string `mapstructure:"repo_id"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// Load reads the YAML configuration at path (or the default search path when
// empty), applies environment overrides, and validates required fields.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TIMESFM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read configuration, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal configuration, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("serving.machine_type", "g2-standard-16")
	v.SetDefault("serving.accelerator_type", "NVIDIA_L4")
	v.SetDefault("serving.accelerator_count", 1)
	v.SetDefault("serving.timesfm_backend", "gpu")
	v.SetDefault("serving.horizon", 128)
	v.SetDefault("serving.deploy_request_timeout", 1800)
	v.SetDefault("invoke.context_len", 120)
	v.SetDefault("invoke.horizon_len", 24)
	v.SetDefault("invoke.batch_size", 128)
	v.SetDefault("invoke.endpoints_file", "./config/endpoints.yml")
	v.SetDefault("invoke.output_dir", "./data/output/forecasts")
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"project.project_id", c.Project.ProjectID},
		{"project.region", c.Project.Region},
		{"project.bucket_name", c.Project.BucketName},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s, %w", r.field, ErrMissingField)
		}
	}
	return nil
}
