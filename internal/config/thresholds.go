package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ThresholdConfig holds operator-tunable detection thresholds and cap defaults.
// Severities and actions stay as plain strings here; the detection layer parses
// them into typed values.
type ThresholdConfig struct {
	Caps      map[string]CapLimit `mapstructure:"caps"`
	Spike     SpikeThresholds     `mapstructure:"spike"`
	ErrorRate ErrorRateThresholds `mapstructure:"errorRate"`
	Pattern   PatternThresholds   `mapstructure:"pattern"`
}

// CapLimit bounds a single cap type. Writes outside [Min, Max] are rejected;
// unset caps fall back to Default. WindowHours is the measurement window used
// when answering "can this project perform one more operation".
type CapLimit struct {
	Default     int64 `mapstructure:"default"`
	Min         int64 `mapstructure:"min"`
	Max         int64 `mapstructure:"max"`
	WindowHours int   `mapstructure:"windowHours"`
}

type SeverityTier struct {
	Severity string  `mapstructure:"severity"`
	MinValue float64 `mapstructure:"minValue"`
}

type ActionRule struct {
	MinSeverity    string `mapstructure:"minSeverity"`
	MinOccurrences int    `mapstructure:"minOccurrences"`
	Action         string `mapstructure:"action"`
}

type SpikeThresholds struct {
	ThresholdMultiplier float64        `mapstructure:"thresholdMultiplier"`
	MinUsageThreshold   float64        `mapstructure:"minUsageThreshold"`
	BaselineHours       int            `mapstructure:"baselineHours"`
	WindowMinutes       int            `mapstructure:"windowMinutes"`
	Tiers               []SeverityTier `mapstructure:"tiers"`
}

type ErrorRateThresholds struct {
	ThresholdPercentage float64        `mapstructure:"thresholdPercentage"`
	MinRequests         int64          `mapstructure:"minRequests"`
	WindowMinutes       int            `mapstructure:"windowMinutes"`
	Tiers               []SeverityTier `mapstructure:"tiers"`
}

type SignatureThresholds struct {
	Enabled       bool  `mapstructure:"enabled"`
	MinHits       int   `mapstructure:"minHits"`
	SevereCount   int64 `mapstructure:"severeCount"`
	CriticalCount int64 `mapstructure:"criticalCount"`
}

type PatternThresholds struct {
	WindowMinutes int                 `mapstructure:"windowMinutes"`
	SQLInjection  SignatureThresholds `mapstructure:"sqlInjection"`
	BruteForce    SignatureThresholds `mapstructure:"bruteForce"`
	RapidKeys     SignatureThresholds `mapstructure:"rapidKeys"`
	ActionRules   []ActionRule        `mapstructure:"actionRules"`
}

func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Caps: map[string]CapLimit{
			"db_queries_per_day":          {Default: 10_000, Min: 100, Max: 1_000_000, WindowHours: 24},
			"realtime_connections":        {Default: 100, Min: 1, Max: 10_000, WindowHours: 1},
			"storage_uploads_per_day":     {Default: 1_000, Min: 10, Max: 100_000, WindowHours: 24},
			"function_invocations_per_day": {Default: 5_000, Min: 50, Max: 500_000, WindowHours: 24},
		},
		Spike: SpikeThresholds{
			ThresholdMultiplier: 3.0,
			MinUsageThreshold:   10,
			BaselineHours:       24,
			WindowMinutes:       60,
			Tiers: []SeverityTier{
				{Severity: "severe", MinValue: 10},
				{Severity: "critical", MinValue: 5},
				{Severity: "warning", MinValue: 3},
			},
		},
		ErrorRate: ErrorRateThresholds{
			ThresholdPercentage: 50,
			MinRequests:         100,
			WindowMinutes:       60,
			Tiers: []SeverityTier{
				{Severity: "severe", MinValue: 75},
				{Severity: "critical", MinValue: 50},
				{Severity: "warning", MinValue: 30},
			},
		},
		Pattern: PatternThresholds{
			WindowMinutes: 60,
			SQLInjection:  SignatureThresholds{Enabled: true, MinHits: 3},
			BruteForce:    SignatureThresholds{Enabled: true, MinHits: 10, SevereCount: 50, CriticalCount: 25},
			RapidKeys:     SignatureThresholds{Enabled: true, MinHits: 5, SevereCount: 20, CriticalCount: 10},
			ActionRules: []ActionRule{
				{MinSeverity: "severe", MinOccurrences: 1, Action: "suspension"},
				{MinSeverity: "critical", MinOccurrences: 3, Action: "suspension"},
				{MinSeverity: "critical", MinOccurrences: 1, Action: "warning"},
				{MinSeverity: "warning", MinOccurrences: 5, Action: "warning"},
			},
		},
	}
}

// ThresholdHolder serves the current ThresholdConfig and hot-reloads it when
// the backing file changes. Invalid updates are ignored.
type ThresholdHolder struct {
	current atomic.Value // holds ThresholdConfig
}

// NewThresholdHolderFromConfig builds a holder from thresholds.yml if present,
// falling back to defaults.
func NewThresholdHolderFromConfig() (*ThresholdHolder, error) {
	v := viper.New()

	v.SetConfigName("thresholds")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/nextmavens/config") // Volume-mounted config
	v.AddConfigPath("/etc/nextmavens")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("NEXTMAVENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder := &ThresholdHolder{}
		holder.current.Store(DefaultThresholdConfig())
		return holder, nil
	}

	cfg := DefaultThresholdConfig()
	if err := v.UnmarshalKey("abuse", &cfg); err != nil {
		return nil, err
	}
	if err := validateThresholdConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ThresholdHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultThresholdConfig()
		if err := v.UnmarshalKey("abuse", &updated); err != nil {
			log.Printf("[thresholds] reload failed: %v", err)
			return
		}
		if err := validateThresholdConfig(updated); err != nil {
			log.Printf("[thresholds] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[thresholds] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticThresholdHolder wraps a fixed config, used by tests.
func NewStaticThresholdHolder(cfg ThresholdConfig) *ThresholdHolder {
	holder := &ThresholdHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ThresholdHolder) Get() ThresholdConfig {
	return h.current.Load().(ThresholdConfig)
}

func validateThresholdConfig(cfg ThresholdConfig) error {
	if len(cfg.Caps) == 0 {
		return errors.New("abuse.caps cannot be empty")
	}
	for capType, limit := range cfg.Caps {
		if limit.Min > limit.Max {
			return errors.New("abuse.caps." + capType + ": min exceeds max")
		}
		if limit.Default < limit.Min || limit.Default > limit.Max {
			return errors.New("abuse.caps." + capType + ": default outside [min, max]")
		}
	}
	if cfg.Spike.ThresholdMultiplier <= 0 {
		return errors.New("abuse.spike.thresholdMultiplier must be positive")
	}
	if cfg.ErrorRate.ThresholdPercentage <= 0 || cfg.ErrorRate.ThresholdPercentage > 100 {
		return errors.New("abuse.errorRate.thresholdPercentage must be in (0, 100]")
	}
	if len(cfg.Spike.Tiers) == 0 || len(cfg.ErrorRate.Tiers) == 0 {
		return errors.New("abuse: severity tiers cannot be empty")
	}
	if len(cfg.Pattern.ActionRules) == 0 {
		return errors.New("abuse.pattern.actionRules cannot be empty")
	}
	return nil
}
