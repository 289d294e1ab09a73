package config

import (
	"fmt"
	"strings"
)

// ValidateStatic rejects configurations the engine cannot run with. It only
// checks shape and ranges; domain rule sets stay caller-supplied.
func ValidateStatic(cfg *Config) error {
	var problems []string

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if cfg.Engine.WorkerThreshold < 0 {
		problems = append(problems, "engine.worker_threshold: must be >= 0")
	}
	if cfg.Engine.MinChunkSize <= 0 {
		problems = append(problems, "engine.min_chunk_size: must be > 0")
	}
	if cfg.Engine.MaxChunkSize <= 0 {
		problems = append(problems, "engine.max_chunk_size: must be > 0")
	}
	if cfg.Engine.MinChunkSize > 0 && cfg.Engine.MaxChunkSize > 0 &&
		cfg.Engine.MinChunkSize > cfg.Engine.MaxChunkSize {
		problems = append(problems, "engine.min_chunk_size: must not exceed engine.max_chunk_size")
	}
	if cfg.Engine.UndoStackDepth <= 0 {
		problems = append(problems, "engine.undo_stack_depth: must be > 0")
	}

	if len(cfg.Dedupe.CoordinateFields) != 0 && len(cfg.Dedupe.CoordinateFields) != 2 {
		problems = append(problems, "dedupe.coordinate_fields: exactly two fields required")
	}
	if cfg.Dedupe.CoordinateTolerance < 0 {
		problems = append(problems, "dedupe.coordinate_tolerance: must be >= 0")
	}
	if cfg.Dedupe.FuzzyConfidenceFloor < 0 || cfg.Dedupe.FuzzyConfidenceFloor > 1 {
		problems = append(problems, "dedupe.fuzzy_confidence_floor: must be within [0,1]")
	}

	if cfg.Import.MappingConfidenceFloor < 0 || cfg.Import.MappingConfidenceFloor > 1 {
		problems = append(problems, "import.mapping_confidence_floor: must be within [0,1]")
	}
	if cfg.Import.Resolver.Retry.MaxAttempts < 1 {
		problems = append(problems, "import.resolver.retry.max_attempts: must be >= 1")
	}

	if cfg.Export.ArtifactTTL <= 0 {
		problems = append(problems, "export.artifact_ttl: must be > 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
