// Package config loads the tunables a Pipeline needs from a YAML file,
// mirroring the shape of bridge/config.go: an internal yamlConfig struct
// decoded with gopkg.in/yaml.v3, defaults applied before the file is read,
// then overridden and validated field by field with wrapped errors.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linn-oss/ohmediapipeline/jiffies"
)

const (
	defaultEncodedReservoirBytes   = 6 * 1024 * 1024
	defaultDecodedReservoirSeconds = 8
	defaultGorgeSeconds            = 1
	defaultRampMs                  = 100
	defaultStarvationLowMs         = 50
	defaultStarvationNormalMs      = 100
	defaultClockHistoryWindow      = 64
)

// Config bounds and tunes a Pipeline.
type Config struct {
	EncodedReservoirBytes   int64
	DecodedReservoirJiffies int64
	GorgeSizeJiffies        int64
	RampDurationJiffies     uint64
	StarvationLowMs         int64
	StarvationNormalMs      int64
	ClockHistoryWindow      int

	LogLevel string
	Source   string
}

type yamlConfig struct {
	Reservoirs struct {
		EncodedBytes      int `yaml:"encoded_bytes"`
		DecodedSeconds    int `yaml:"decoded_seconds"`
		GorgeSeconds      int `yaml:"gorge_seconds"`
	} `yaml:"reservoirs"`
	Ramps struct {
		DurationMs int `yaml:"duration_ms"`
	} `yaml:"ramps"`
	Starvation struct {
		LowMs    int `yaml:"low_ms"`
		NormalMs int `yaml:"normal_ms"`
	} `yaml:"starvation"`
	Clock struct {
		HistoryWindow int `yaml:"history_window"`
	} `yaml:"clock"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Source string `yaml:"source"`
}

// Default returns a Config usable without any file, sized for a
// single-stream desktop-class renderer.
func Default() Config {
	return Config{
		EncodedReservoirBytes:   defaultEncodedReservoirBytes,
		DecodedReservoirJiffies: int64(defaultDecodedReservoirSeconds) * int64(jiffies.PerSecond),
		GorgeSizeJiffies:        int64(defaultGorgeSeconds) * int64(jiffies.PerSecond),
		RampDurationJiffies:     jiffies.FromDuration(defaultRampMs * time.Millisecond),
		StarvationLowMs:         defaultStarvationLowMs,
		StarvationNormalMs:      defaultStarvationNormalMs,
		ClockHistoryWindow:      defaultClockHistoryWindow,
		LogLevel:                "info",
	}
}

// Load reads and validates a YAML configuration file, applying Default()
// values for anything left unset.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse file: %w", err)
	}

	if yc.Reservoirs.EncodedBytes > 0 {
		cfg.EncodedReservoirBytes = int64(yc.Reservoirs.EncodedBytes)
	}
	if yc.Reservoirs.DecodedSeconds > 0 {
		cfg.DecodedReservoirJiffies = int64(yc.Reservoirs.DecodedSeconds) * int64(jiffies.PerSecond)
	}
	if yc.Reservoirs.GorgeSeconds > 0 {
		cfg.GorgeSizeJiffies = int64(yc.Reservoirs.GorgeSeconds) * int64(jiffies.PerSecond)
	}
	if yc.Ramps.DurationMs > 0 {
		cfg.RampDurationJiffies = jiffies.FromDuration(time.Duration(yc.Ramps.DurationMs) * time.Millisecond)
	}
	if yc.Starvation.LowMs > 0 {
		cfg.StarvationLowMs = int64(yc.Starvation.LowMs)
	}
	if yc.Starvation.NormalMs > 0 {
		cfg.StarvationNormalMs = int64(yc.Starvation.NormalMs)
	}
	if cfg.StarvationNormalMs <= cfg.StarvationLowMs {
		return Config{}, fmt.Errorf("config: starvation.normal_ms (%d) must exceed starvation.low_ms (%d)", cfg.StarvationNormalMs, cfg.StarvationLowMs)
	}
	if yc.Clock.HistoryWindow > 0 {
		cfg.ClockHistoryWindow = yc.Clock.HistoryWindow
	}
	if yc.Log.Level != "" {
		cfg.LogLevel = yc.Log.Level
	}
	cfg.Source = yc.Source

	return cfg, nil
}
