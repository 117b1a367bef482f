package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mortfit/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{
		Input:     "data.csv",
		Sex:       1,
		OutputDir: "outputs",
	}
	cfg.Sampler = config.SamplerConfig{Draws: 1000, Tune: 1000, Chains: 2, Seed: 123}

	applyOverrides(cfg, "other.csv", 2, "elsewhere", 50, 0, 4, 999, true)

	assert.Equal(t, "other.csv", cfg.Input)
	assert.Equal(t, 2, cfg.Sex)
	assert.Equal(t, "elsewhere", cfg.OutputDir)
	assert.Equal(t, 50, cfg.Sampler.Draws)
	assert.Equal(t, 0, cfg.Sampler.Tune)
	assert.Equal(t, 4, cfg.Sampler.Chains)
	assert.Equal(t, uint64(999), cfg.Sampler.Seed)
	assert.True(t, cfg.Plots)
}

func TestApplyOverrides_SentinelsKeepConfig(t *testing.T) {
	cfg := &config.Config{
		Input:     "data.csv",
		Sex:       1,
		OutputDir: "outputs",
	}
	cfg.Sampler = config.SamplerConfig{Draws: 1000, Tune: 1000, Chains: 2, Seed: 123}

	applyOverrides(cfg, "", -1, "", -1, -1, -1, 0, false)

	assert.Equal(t, "data.csv", cfg.Input)
	assert.Equal(t, 1, cfg.Sex)
	assert.Equal(t, 1000, cfg.Sampler.Draws)
	assert.Equal(t, 1000, cfg.Sampler.Tune)
	assert.Equal(t, 2, cfg.Sampler.Chains)
	assert.Equal(t, uint64(123), cfg.Sampler.Seed)
	assert.False(t, cfg.Plots)
}
