package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	// No file means defaults plus environment overrides.
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	defaults := Default()

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)

	viper.SetDefault("engine.worker_threshold", defaults.Engine.WorkerThreshold)
	viper.SetDefault("engine.min_chunk_size", defaults.Engine.MinChunkSize)
	viper.SetDefault("engine.max_chunk_size", defaults.Engine.MaxChunkSize)
	viper.SetDefault("engine.undo_stack_depth", defaults.Engine.UndoStackDepth)
	viper.SetDefault("engine.progress_interval", defaults.Engine.ProgressInterval)

	viper.SetDefault("dedupe.natural_key_field", defaults.Dedupe.NaturalKeyField)
	viper.SetDefault("dedupe.coordinate_fields", defaults.Dedupe.CoordinateFields)
	viper.SetDefault("dedupe.coordinate_tolerance", defaults.Dedupe.CoordinateTolerance)
	viper.SetDefault("dedupe.fuzzy_confidence_floor", defaults.Dedupe.FuzzyConfidenceFloor)

	viper.SetDefault("import.mapping_confidence_floor", defaults.Import.MappingConfidenceFloor)
	viper.SetDefault("import.resolver.retry.max_attempts", defaults.Import.Resolver.Retry.MaxAttempts)
	viper.SetDefault("import.resolver.retry.initial_interval", defaults.Import.Resolver.Retry.InitialInterval)
	viper.SetDefault("import.resolver.retry.max_interval", defaults.Import.Resolver.Retry.MaxInterval)
	viper.SetDefault("import.resolver.retry.multiplier", defaults.Import.Resolver.Retry.Multiplier)
	viper.SetDefault("import.resolver.retry.max_elapsed_time", defaults.Import.Resolver.Retry.MaxElapsedTime)
	viper.SetDefault("import.resolver.circuit_breaker.enabled", defaults.Import.Resolver.CircuitBreaker.Enabled)
	viper.SetDefault("import.resolver.circuit_breaker.max_requests", defaults.Import.Resolver.CircuitBreaker.MaxRequests)
	viper.SetDefault("import.resolver.circuit_breaker.interval", defaults.Import.Resolver.CircuitBreaker.Interval)
	viper.SetDefault("import.resolver.circuit_breaker.timeout", defaults.Import.Resolver.CircuitBreaker.Timeout)
	viper.SetDefault("import.resolver.circuit_breaker.failure_ratio", defaults.Import.Resolver.CircuitBreaker.FailureRatio)
	viper.SetDefault("import.resolver.circuit_breaker.min_requests", defaults.Import.Resolver.CircuitBreaker.MinRequests)

	viper.SetDefault("export.artifact_ttl", defaults.Export.ArtifactTTL)
	viper.SetDefault("export.include_internal_fields", defaults.Export.IncludeInternalFields)
}

func bindEnvVariables() {
	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("engine.worker_threshold", "ENGINE_WORKER_THRESHOLD")
	viper.BindEnv("engine.min_chunk_size", "ENGINE_MIN_CHUNK_SIZE")
	viper.BindEnv("engine.max_chunk_size", "ENGINE_MAX_CHUNK_SIZE")
	viper.BindEnv("engine.undo_stack_depth", "ENGINE_UNDO_STACK_DEPTH")

	viper.BindEnv("dedupe.natural_key_field", "DEDUPE_NATURAL_KEY_FIELD")
	viper.BindEnv("dedupe.coordinate_tolerance", "DEDUPE_COORDINATE_TOLERANCE")
	viper.BindEnv("dedupe.fuzzy_confidence_floor", "DEDUPE_FUZZY_CONFIDENCE_FLOOR")

	viper.BindEnv("import.mapping_confidence_floor", "IMPORT_MAPPING_CONFIDENCE_FLOOR")

	viper.BindEnv("export.artifact_ttl", "EXPORT_ARTIFACT_TTL")
}
