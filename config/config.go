// Package config loads segmenter.Config from defaults, an optional file,
// and environment variables, in that order of increasing precedence.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/billglover/aissegment/segmenter"
)

const envPrefix = "AISSEG"

// Load builds a segmenter.Config from defaults overlaid by an optional
// config file at path (if non-empty) and AISSEG_-prefixed environment
// variables, then validates it. An empty path skips file loading
// entirely rather than erroring.
func Load(path string) (segmenter.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return segmenter.Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg segmenter.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return segmenter.Config{}, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return segmenter.Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := segmenter.DefaultConfig()
	v.SetDefault("max_hours", d.MaxHours)
	v.SetDefault("max_speed", d.MaxSpeedKn)
	v.SetDefault("reported_speed_multiplier", d.ReportedSpeedMultiplier)
	v.SetDefault("noise_dist", d.NoiseDistNM)
	v.SetDefault("noise_time", d.NoiseTime)
	v.SetDefault("penalty_speed", d.PenaltySpeed)
	v.SetDefault("buffer_nm", d.BufferNM)
	v.SetDefault("ident_confirm", d.IdentConfirm)
	v.SetDefault("ident_window", d.IdentWindow)
	v.SetDefault("ident_cap", d.IdentCap)
	v.SetDefault("segment_field", d.SegmentField)
	v.SetDefault("collect_match_stats", d.CollectMatchStats)
}
