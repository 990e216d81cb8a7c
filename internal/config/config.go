// Package config implements spec §6's engine configuration surface:
// env-var loading (with an optional .env file) plus optional YAML
// overlay, following the same getEnv/getEnvAs* pattern the teacher uses
// throughout its config packages.
//
// Grounded on _examples/smilemakc-mbflow's backend/internal/config
// /config.go (godotenv.Load + getEnv/getEnvAsInt/getEnvAsBool/
// getEnvAsDuration helpers, RETECORE_-style prefixed env names).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smilemakc/retecore/internal/agenda"
	"github.com/smilemakc/retecore/internal/backward"
	"github.com/smilemakc/retecore/internal/errs"
)

// Config is the engine configuration of spec §6.
type Config struct {
	MaxCycles                 int                  `yaml:"max_cycles"`
	Timeout                   time.Duration        `yaml:"timeout"`
	ConflictResolutionStrategy agenda.StrategyKind `yaml:"conflict_resolution_strategy"`
	DebugMode                 bool                 `yaml:"debug_mode"`
	EnableStats               bool                 `yaml:"enable_stats"`

	Parallel   ParallelConfig   `yaml:"parallel"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Backward   BackwardConfig   `yaml:"backward"`
	Streaming  StreamingConfig  `yaml:"streaming"`
}

// ParallelConfig configures the parallel executor (spec §4.K).
type ParallelConfig struct {
	Enabled            bool `yaml:"enabled"`
	MaxThreads         int  `yaml:"max_threads"`
	MinRulesPerThread  int  `yaml:"min_rules_per_thread"`
	DependencyAnalysis bool `yaml:"dependency_analysis"`
}

// AnalyticsConfig configures the analytics collector (spec §4.N).
type AnalyticsConfig struct {
	TrackExecutionTime bool    `yaml:"track_execution_time"`
	TrackMemoryUsage   bool    `yaml:"track_memory_usage"`
	SamplingRate       float64 `yaml:"sampling_rate"`
	Retention          time.Duration `yaml:"retention"`
	MaxSamples         int     `yaml:"max_samples"`
}

// BackwardConfig configures the backward engine (spec §4.I).
type BackwardConfig struct {
	MaxDepth         int                    `yaml:"max_depth"`
	Strategy         backward.SearchStrategy `yaml:"strategy"`
	EnableMemoization bool                  `yaml:"enable_memoization"`
	MaxSolutions     int                    `yaml:"max_solutions"`
}

// LateDataPolicy names how the streaming extension handles data past
// the allowed lateness (spec §6).
type LateDataPolicy string

const (
	LateDataDrop      LateDataPolicy = "drop"
	LateDataSideOutput LateDataPolicy = "side_output"
	LateDataAllow     LateDataPolicy = "allow"
	LateDataRecompute LateDataPolicy = "recompute"
)

// StreamingConfig configures the streaming extension (spec §4.H).
type StreamingConfig struct {
	WatermarkStrategy string         `yaml:"watermark_strategy"`
	AllowedLateness   time.Duration  `yaml:"allowed_lateness"`
	LateDataPolicy    LateDataPolicy `yaml:"late_data_policy"`
}

// Default returns the engine's built-in default configuration (spec §6
// defaults: max_cycles=10).
func Default() Config {
	return Config{
		MaxCycles:                  10,
		ConflictResolutionStrategy: agenda.StrategySalience,
		Parallel: ParallelConfig{
			MaxThreads:        4,
			MinRulesPerThread: 1,
		},
		Analytics: AnalyticsConfig{
			SamplingRate: 1.0,
			MaxSamples:   1000,
		},
		Backward: BackwardConfig{
			MaxDepth:          50,
			Strategy:          backward.DFS,
			EnableMemoization: true,
			MaxSolutions:      1,
		},
		Streaming: StreamingConfig{
			WatermarkStrategy: "monotonic_ascending",
			LateDataPolicy:    LateDataDrop,
		},
	}
}

// Load builds a Config starting from Default(), loading a .env file if
// present, then applying RETECORE_-prefixed environment overrides.
func Load() Config {
	godotenv.Load()
	cfg := Default()

	cfg.MaxCycles = getEnvAsInt("RETECORE_MAX_CYCLES", cfg.MaxCycles)
	cfg.Timeout = getEnvAsDuration("RETECORE_TIMEOUT", cfg.Timeout)
	cfg.ConflictResolutionStrategy = agenda.StrategyKind(getEnv("RETECORE_CONFLICT_RESOLUTION_STRATEGY", string(cfg.ConflictResolutionStrategy)))
	cfg.DebugMode = getEnvAsBool("RETECORE_DEBUG_MODE", cfg.DebugMode)
	cfg.EnableStats = getEnvAsBool("RETECORE_ENABLE_STATS", cfg.EnableStats)

	cfg.Parallel.Enabled = getEnvAsBool("RETECORE_PARALLEL_ENABLED", cfg.Parallel.Enabled)
	cfg.Parallel.MaxThreads = getEnvAsInt("RETECORE_PARALLEL_MAX_THREADS", cfg.Parallel.MaxThreads)
	cfg.Parallel.MinRulesPerThread = getEnvAsInt("RETECORE_PARALLEL_MIN_RULES_PER_THREAD", cfg.Parallel.MinRulesPerThread)
	cfg.Parallel.DependencyAnalysis = getEnvAsBool("RETECORE_PARALLEL_DEPENDENCY_ANALYSIS", cfg.Parallel.DependencyAnalysis)

	cfg.Analytics.SamplingRate = getEnvAsFloat("RETECORE_ANALYTICS_SAMPLING_RATE", cfg.Analytics.SamplingRate)
	cfg.Analytics.MaxSamples = getEnvAsInt("RETECORE_ANALYTICS_MAX_SAMPLES", cfg.Analytics.MaxSamples)
	cfg.Analytics.Retention = getEnvAsDuration("RETECORE_ANALYTICS_RETENTION", cfg.Analytics.Retention)
	cfg.Analytics.TrackExecutionTime = getEnvAsBool("RETECORE_ANALYTICS_TRACK_EXECUTION_TIME", cfg.Analytics.TrackExecutionTime)
	cfg.Analytics.TrackMemoryUsage = getEnvAsBool("RETECORE_ANALYTICS_TRACK_MEMORY_USAGE", cfg.Analytics.TrackMemoryUsage)

	cfg.Backward.MaxDepth = getEnvAsInt("RETECORE_BACKWARD_MAX_DEPTH", cfg.Backward.MaxDepth)
	cfg.Backward.Strategy = backward.SearchStrategy(getEnv("RETECORE_BACKWARD_STRATEGY", string(cfg.Backward.Strategy)))
	cfg.Backward.EnableMemoization = getEnvAsBool("RETECORE_BACKWARD_ENABLE_MEMOIZATION", cfg.Backward.EnableMemoization)
	cfg.Backward.MaxSolutions = getEnvAsInt("RETECORE_BACKWARD_MAX_SOLUTIONS", cfg.Backward.MaxSolutions)

	cfg.Streaming.WatermarkStrategy = getEnv("RETECORE_STREAMING_WATERMARK_STRATEGY", cfg.Streaming.WatermarkStrategy)
	cfg.Streaming.AllowedLateness = getEnvAsDuration("RETECORE_STREAMING_ALLOWED_LATENESS", cfg.Streaming.AllowedLateness)
	cfg.Streaming.LateDataPolicy = LateDataPolicy(getEnv("RETECORE_STREAMING_LATE_DATA_POLICY", string(cfg.Streaming.LateDataPolicy)))

	return cfg
}

// LoadYAML overlays cfg with values from a YAML file (spec §1 scope
// note: the rule text format stays out of scope, but engine
// configuration commonly ships as YAML in this stack).
func LoadYAML(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errs.New(errs.CodeInvalidInput, "reading config file", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.New(errs.CodeInvalidInput, "parsing config YAML", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
