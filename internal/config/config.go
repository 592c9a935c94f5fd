// Package config handles configuration loading for the core: flags, a
// per-project YAML file, and environment variables layered through viper,
// following the XDG/project-override pattern of the teacher's
// internal/config/config.go, narrowed to the settings this spec's CLI
// surface exposes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sundog75/autocoder/internal/pool"
)

// Config holds the settings the scheduler and agent pools need for a run.
type Config struct {
	ProjectDir        string `mapstructure:"project_dir"`
	MaxConcurrency    int    `mapstructure:"max_concurrency"`
	Model             string `mapstructure:"model"`
	Yolo              bool   `mapstructure:"yolo"`
	TestingAgentRatio int    `mapstructure:"testing_agent_ratio"`
	WorkerBinary      string `mapstructure:"worker_binary"`
}

// Precedence (highest to lowest): command-line flags, environment
// variables (AUTOCODER_ prefix), project config (.autocoder.yaml in the
// project directory or an ancestor), built-in defaults.
const envPrefix = "AUTOCODER"

// Default returns a Config with the built-in defaults, unaffected by any
// flags, env vars, or files.
func Default() *Config {
	return &Config{
		MaxConcurrency:    3,
		TestingAgentRatio: 1,
		WorkerBinary:      "autocoder-worker",
	}
}

// Load builds a Config from defaults, an optional project config file, and
// environment variables. projectDir is used both as the directory to
// search for .autocoder.yaml and as the Config.ProjectDir default.
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, projectDir)

	if cfgPath := findProjectConfig(projectDir); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// ApplyFlags overlays explicitly-set command-line flag values onto cfg.
// Called after Load so flags win over file and environment settings, per
// the stated precedence.
func (c *Config) ApplyFlags(projectDir, model, workerBinary string, maxConcurrency, testingAgentRatio int, yoloSet bool, yolo bool) {
	if projectDir != "" {
		c.ProjectDir = projectDir
	}
	if model != "" {
		c.Model = model
	}
	if workerBinary != "" {
		c.WorkerBinary = workerBinary
	}
	if maxConcurrency > 0 {
		c.MaxConcurrency = maxConcurrency
	}
	if testingAgentRatio >= 0 {
		c.TestingAgentRatio = testingAgentRatio
	}
	if yoloSet {
		c.Yolo = yolo
	}
}

// Validate clamps out-of-range values and reports a hard error for
// settings that cannot be salvaged (an empty project directory).
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return fmt.Errorf("config: project directory is required")
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if c.MaxConcurrency > pool.MaxParallelAgents {
		c.MaxConcurrency = pool.MaxParallelAgents
	}
	if c.TestingAgentRatio < 0 {
		c.TestingAgentRatio = 0
	}
	if c.TestingAgentRatio > pool.MaxTestingAgentRatio {
		c.TestingAgentRatio = pool.MaxTestingAgentRatio
	}
	return nil
}

// WorkerSpec builds the pool.WorkerSpec this Config describes.
func (c *Config) WorkerSpec() pool.WorkerSpec {
	return pool.WorkerSpec{
		BinaryPath: c.WorkerBinary,
		ProjectDir: c.ProjectDir,
		Model:      c.Model,
		Yolo:       c.Yolo,
	}
}

func setDefaults(v *viper.Viper, projectDir string) {
	d := Default()
	v.SetDefault("project_dir", projectDir)
	v.SetDefault("max_concurrency", d.MaxConcurrency)
	v.SetDefault("model", d.Model)
	v.SetDefault("yolo", d.Yolo)
	v.SetDefault("testing_agent_ratio", d.TestingAgentRatio)
	v.SetDefault("worker_binary", d.WorkerBinary)
}

// findProjectConfig searches projectDir and its ancestors for
// .autocoder.yaml.
func findProjectConfig(projectDir string) string {
	if projectDir == "" {
		return ""
	}
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".autocoder.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
