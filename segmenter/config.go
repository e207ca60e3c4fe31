package segmenter

import (
	"fmt"
	"time"
)

// Config bundles every tunable the segmenter core needs. It is
// read-only once constructed and passed by value into New — no
// process-wide state.
type Config struct {
	MaxHours                float64       `mapstructure:"max_hours"`
	MaxSpeedKn              float64       `mapstructure:"max_speed"`
	ReportedSpeedMultiplier float64       `mapstructure:"reported_speed_multiplier"`
	NoiseDistNM             float64       `mapstructure:"noise_dist"`
	NoiseTime               time.Duration `mapstructure:"noise_time"`
	PenaltySpeed            float64       `mapstructure:"penalty_speed"`
	BufferNM                float64       `mapstructure:"buffer_nm"`
	IdentConfirm            int           `mapstructure:"ident_confirm"`
	IdentWindow             time.Duration `mapstructure:"ident_window"`
	IdentCap                int           `mapstructure:"ident_cap"`
	SegmentField            string        `mapstructure:"segment_field"`
	CollectMatchStats       bool          `mapstructure:"collect_match_stats"`
}

// DefaultConfig returns the stock tuning values suitable for a
// typical vessel-tracking deployment.
func DefaultConfig() Config {
	return Config{
		MaxHours:                24,
		MaxSpeedKn:              30,
		ReportedSpeedMultiplier: 1.1,
		NoiseDistNM:             0.1,
		NoiseTime:               5 * time.Minute,
		PenaltySpeed:            12,
		BufferNM:                1.0,
		IdentConfirm:            2,
		IdentWindow:             15 * time.Minute,
		IdentCap:                32,
		SegmentField:            "segment",
		CollectMatchStats:       false,
	}
}

// Validate rejects configurations the core cannot run with. Invalid
// configuration is always a fatal error at construction time.
func (c Config) Validate() error {
	switch {
	case c.MaxHours <= 0:
		return fmt.Errorf("%w: max_hours must be positive, got %v", ErrInvalidConfig, c.MaxHours)
	case c.MaxSpeedKn <= 0:
		return fmt.Errorf("%w: max_speed must be positive, got %v", ErrInvalidConfig, c.MaxSpeedKn)
	case c.ReportedSpeedMultiplier <= 0:
		return fmt.Errorf("%w: reported_speed_multiplier must be positive, got %v", ErrInvalidConfig, c.ReportedSpeedMultiplier)
	case c.NoiseDistNM < 0:
		return fmt.Errorf("%w: noise_dist must not be negative, got %v", ErrInvalidConfig, c.NoiseDistNM)
	case c.NoiseTime < 0:
		return fmt.Errorf("%w: noise_time must not be negative, got %v", ErrInvalidConfig, c.NoiseTime)
	case c.PenaltySpeed <= 0:
		return fmt.Errorf("%w: penalty_speed must be positive, got %v", ErrInvalidConfig, c.PenaltySpeed)
	case c.BufferNM < 0:
		return fmt.Errorf("%w: buffer_nm must not be negative, got %v", ErrInvalidConfig, c.BufferNM)
	case c.IdentConfirm <= 0:
		return fmt.Errorf("%w: ident_confirm must be positive, got %v", ErrInvalidConfig, c.IdentConfirm)
	case c.IdentWindow <= 0:
		return fmt.Errorf("%w: ident_window must be positive, got %v", ErrInvalidConfig, c.IdentWindow)
	case c.IdentCap <= 0:
		return fmt.Errorf("%w: ident_cap must be positive, got %v", ErrInvalidConfig, c.IdentCap)
	case c.SegmentField == "":
		return fmt.Errorf("%w: segment_field must not be empty", ErrInvalidConfig)
	}
	return nil
}
