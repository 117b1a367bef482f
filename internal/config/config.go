package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is the optional YAML configuration file looked up in
// the working directory.
const DefaultConfigFile = "mortfit.yml"

// Config represents the complete run configuration for the model commands.
// Defaults live in defaultConfig, not in struct tags: envconfig re-applies
// default tags for unset variables, which would clobber file values.
type Config struct {
	Input     string         `yaml:"input" envconfig:"INPUT" validate:"required"`
	Sex       int            `yaml:"sex" envconfig:"SEX" validate:"gte=0"`
	OutputDir string         `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	Plots     bool           `yaml:"plots" envconfig:"PLOTS"`
	Logging   LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Sampler   SamplerConfig  `yaml:"sampler" envconfig:"SAMPLER"`
	Forecast  ForecastConfig `yaml:"forecast" envconfig:"FORECAST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SamplerConfig controls the posterior sampler of the age-period-cohort model.
type SamplerConfig struct {
	Draws        int     `yaml:"draws" envconfig:"DRAWS" validate:"gte=1"`
	Tune         int     `yaml:"tune" envconfig:"TUNE" validate:"gte=0"`
	Chains       int     `yaml:"chains" envconfig:"CHAINS" validate:"gte=1"`
	TargetAccept float64 `yaml:"target_accept" envconfig:"TARGET_ACCEPT" validate:"gt=0,lt=1"`
	Seed         uint64  `yaml:"seed" envconfig:"SEED"`
}

// ForecastConfig controls the Lee-Carter time-index forecast.
type ForecastConfig struct {
	Horizon int `yaml:"horizon" envconfig:"HORIZON" validate:"gte=0"`
}

// defaultConfig returns the baseline configuration before file and
// environment overlays.
func defaultConfig() Config {
	return Config{
		Input:     "data/processed/poblacion_defunciones_por_gr_et.csv",
		Sex:       1,
		OutputDir: "outputs",
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "logs/mortfit.log",
		},
		Sampler: SamplerConfig{
			Draws:        1000,
			Tune:         1000,
			Chains:       2,
			TargetAccept: 0.9,
			Seed:         123,
		},
		Forecast: ForecastConfig{
			Horizon: 10,
		},
	}
}

// Load loads configuration from environment variables (MORTFIT_ prefix) and
// the optional YAML config file. Environment variables take precedence over
// file values, which take precedence over defaults.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom loads configuration with an explicit config file path.
// A missing file is not an error; the file is optional.
func LoadFrom(configFile string) (*Config, error) {
	cfg := defaultConfig()

	// File over defaults: unmarshaling onto the populated struct leaves
	// fields the file omits untouched.
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, &cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Environment on top. Only variables that are actually set change
	// anything here; there are no default tags to re-apply.
	if err := envconfig.Process("MORTFIT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile merges configuration from a YAML file into cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
