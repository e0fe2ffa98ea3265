// Package config loads and validates a run's configuration from YAML,
// modeled directly on the teacher's pkg/config/config.go:
// Manager.Load/Save/GetConfig/SetConfig, a getDefaultConfig seed struct,
// environment-variable overrides, and a validate pass run on every load.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lattice-opt/gacore/internal/gadefaults"
)

// RunConfig is the YAML-serializable shape of one run's constructor
// inputs, panmictic and island.
type RunConfig struct {
	Encoding string `yaml:"encoding"`

	PopSize    int     `yaml:"pop_size"`
	Pcrossover float64 `yaml:"pcrossover"`
	Pmutation  float64 `yaml:"pmutation"`
	Elitism    int     `yaml:"elitism"`
	MaxIter    int     `yaml:"max_iter"`
	Run        int     `yaml:"run"`
	MaxFitness float64 `yaml:"max_fitness"`

	Seed            int64 `yaml:"seed"`
	ParallelWorkers int   `yaml:"parallel_workers"`
	UpdatePop       bool  `yaml:"update_pop"`
	KeepBest        bool  `yaml:"keep_best"`

	Optim   bool    `yaml:"optim"`
	Poptim  float64 `yaml:"poptim"`
	Pressel float64 `yaml:"pressel"`

	NumIslands        int     `yaml:"num_islands"`
	MigrationRate     float64 `yaml:"migration_rate"`
	MigrationInterval int     `yaml:"migration_interval"`
}

// Manager handles configuration loading and validation.
type Manager struct {
	config *RunConfig
	path   string
}

// NewManager creates a new configuration manager seeded with the
// process-lifetime defaults of internal/gadefaults.
func NewManager() *Manager {
	return &Manager{config: getDefaultConfig()}
}

// Load loads configuration from a YAML file, applies environment
// overrides, validates the result, and adopts it.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := getDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.applyEnvOverrides(config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := m.validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.path = path
	return nil
}

// Save serializes the current configuration to path.
func (m *Manager) Save(path string) error {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *RunConfig {
	return m.config
}

// SetConfig replaces the current configuration.
func (m *Manager) SetConfig(config *RunConfig) {
	m.config = config
}

// GetPath returns the path the configuration was last loaded from.
func (m *Manager) GetPath() string {
	return m.path
}

// applyEnvOverrides applies the GA_* environment overrides, mirroring
// the teacher's NUM_ISLANDS/MAX_ITERATIONS/SEED override shape.
func (m *Manager) applyEnvOverrides(config *RunConfig) error {
	if v := os.Getenv("GA_POP_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GA_POP_SIZE: %w", err)
		}
		config.PopSize = n
	}
	if v := os.Getenv("GA_MAX_ITER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GA_MAX_ITER: %w", err)
		}
		config.MaxIter = n
	}
	if v := os.Getenv("GA_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("GA_SEED: %w", err)
		}
		config.Seed = n
	}
	if v := os.Getenv("GA_PARALLEL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GA_PARALLEL_WORKERS: %w", err)
		}
		config.ParallelWorkers = n
	}
	return nil
}

// validate checks the configuration for out-of-range values before the
// manager adopts it.
func (m *Manager) validate(config *RunConfig) error {
	if config.PopSize < 1 {
		return fmt.Errorf("pop_size must be positive")
	}
	if config.Pcrossover < 0 || config.Pcrossover > 1 {
		return fmt.Errorf("pcrossover must be in [0,1]")
	}
	if config.Pmutation < 0 || config.Pmutation > 1 {
		return fmt.Errorf("pmutation must be in [0,1]")
	}
	if config.Elitism < 0 || config.Elitism > config.PopSize {
		return fmt.Errorf("elitism must be between 0 and pop_size")
	}
	if config.MaxIter < 1 {
		return fmt.Errorf("max_iter must be positive")
	}
	if config.ParallelWorkers < 0 {
		return fmt.Errorf("parallel_workers must not be negative")
	}
	if config.Optim && (config.Pressel < 0 || config.Pressel > 1) {
		return fmt.Errorf("pressel must be in [0,1]")
	}
	if config.NumIslands != 0 {
		if config.NumIslands < 2 {
			return fmt.Errorf("num_islands must be at least 2 for ring migration")
		}
		if config.MigrationRate <= 0 || config.MigrationRate > 1 {
			return fmt.Errorf("migration_rate must be in (0,1]")
		}
		if config.MigrationInterval < 1 {
			return fmt.Errorf("migration_interval must be positive")
		}
	}
	return nil
}

// getDefaultConfig returns the default configuration, seeded from
// internal/gadefaults.Get() the same way a driver snapshots the
// process-lifetime defaults at construction.
func getDefaultConfig() *RunConfig {
	d := gadefaults.Get()
	return &RunConfig{
		Encoding:          "Binary",
		PopSize:           d.PopSize,
		Pcrossover:        d.Pcrossover,
		Pmutation:         d.Pmutation,
		Elitism:           0,
		MaxIter:           d.MaxIter,
		Run:               0,
		MaxFitness:        0,
		Seed:              0,
		ParallelWorkers:   d.ParallelWorkers,
		UpdatePop:         false,
		KeepBest:          false,
		Optim:             false,
		Poptim:            d.Poptim,
		Pressel:           d.Pressel,
		NumIslands:        0,
		MigrationRate:     d.MigrationRate,
		MigrationInterval: d.MigrationInterval,
	}
}

// CreateDefaultConfig writes the built-in default configuration to path.
func CreateDefaultConfig(path string) error {
	manager := NewManager()
	return manager.Save(path)
}
