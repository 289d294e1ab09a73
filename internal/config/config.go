package config

import "time"

type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Dedupe  DedupeConfig  `mapstructure:"dedupe"`
	Import  ImportConfig  `mapstructure:"import"`
	Export  ExportConfig  `mapstructure:"export"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	// WorkerThreshold is the record count above which a batch is offloaded
	// to a background worker instead of running inline.
	WorkerThreshold int `mapstructure:"worker_threshold"`
	MinChunkSize    int `mapstructure:"min_chunk_size"`
	MaxChunkSize    int `mapstructure:"max_chunk_size"`
	UndoStackDepth  int `mapstructure:"undo_stack_depth"`
	// ProgressInterval throttles progress emission to subscribers. Terminal
	// and 100% events are always delivered.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

type DedupeConfig struct {
	NaturalKeyField      string   `mapstructure:"natural_key_field"`
	CoordinateFields     []string `mapstructure:"coordinate_fields"`
	CoordinateTolerance  float64  `mapstructure:"coordinate_tolerance"`
	FuzzyConfidenceFloor float64  `mapstructure:"fuzzy_confidence_floor"`
}

type ImportConfig struct {
	MappingConfidenceFloor float64        `mapstructure:"mapping_confidence_floor"`
	Resolver               ResolverConfig `mapstructure:"resolver"`
}

type ResolverConfig struct {
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type ExportConfig struct {
	ArtifactTTL           time.Duration `mapstructure:"artifact_ttl"`
	IncludeInternalFields bool          `mapstructure:"include_internal_fields"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Engine: EngineConfig{
			WorkerThreshold:  1000,
			MinChunkSize:     50,
			MaxChunkSize:     500,
			UndoStackDepth:   20,
			ProgressInterval: 100 * time.Millisecond,
		},
		Dedupe: DedupeConfig{
			NaturalKeyField:      "name",
			CoordinateFields:     []string{"latitude", "longitude"},
			CoordinateTolerance:  0.0001,
			FuzzyConfidenceFloor: 0.85,
		},
		Import: ImportConfig{
			MappingConfidenceFloor: 0.6,
			Resolver: ResolverConfig{
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 500 * time.Millisecond,
					MaxInterval:     10 * time.Second,
					Multiplier:      2.0,
					MaxElapsedTime:  time.Minute,
				},
				CircuitBreaker: CircuitBreakerConfig{
					Enabled:      true,
					MaxRequests:  3,
					Interval:     60 * time.Second,
					Timeout:      60 * time.Second,
					FailureRatio: 0.5,
					MinRequests:  3,
				},
			},
		},
		Export: ExportConfig{
			ArtifactTTL:           24 * time.Hour,
			IncludeInternalFields: false,
		},
	}
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
