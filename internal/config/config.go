// Package config loads streamshard's YAML configuration: stream identity
// and starting position, shard discovery cadence, inconsistency-retry
// budget, and the ambient logging/metrics/checkpoint settings. Uses a typed
// struct with explicit per-field parse and validate steps, not a generic
// Unmarshal-into-any blob with no validation path.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/usedatabrew/streamshard/internal/source/splittracker"
)

// rawConfig is the literal YAML shape: durations and timestamps stay
// strings here so Parse can report field-level errors from an explicit
// string-then-ParseDuration step.
type rawConfig struct {
	Stream struct {
		ARN              string `yaml:"arn"`
		InitialPosition  string `yaml:"initial_position"`
		InitialTimestamp string `yaml:"initial_timestamp"`
	} `yaml:"stream"`

	ShardDiscovery struct {
		Interval string `yaml:"interval"`
	} `yaml:"shard_discovery"`

	DescribeStream struct {
		InconsistencyResolution struct {
			RetryCount int `yaml:"retry_count"`
		} `yaml:"inconsistency_resolution"`
	} `yaml:"describe_stream"`

	SplitRetention string `yaml:"split_retention"`
	Parallelism    int    `yaml:"parallelism"`

	Checkpoint struct {
		Backend      string `yaml:"backend"` // "memory" or "dynamodb"
		DynamoDBTable string `yaml:"dynamodb_table"`
		EnumeratorID string `yaml:"enumerator_id"`
	} `yaml:"checkpoint"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Config is the validated, typed configuration the rest of the module
// consumes.
type Config struct {
	StreamARN               string
	InitialPosition         splittracker.InitialPositionMode
	InitialTimestamp        time.Time
	ShardDiscoveryInterval  time.Duration
	InconsistencyRetryCount int
	SplitRetention          time.Duration
	Parallelism             int

	CheckpointBackend     string
	CheckpointTable       string
	EnumeratorID          string

	LogLevel string
}

const (
	positionTrimHorizon = "TRIM_HORIZON"
	positionLatest      = "LATEST"
	positionAtTimestamp = "AT_TIMESTAMP"
)

// recognized defaults for optional configuration keys.
const (
	defaultInitialPosition = positionLatest
	defaultRetryCount      = 5
)

// Load reads and validates the YAML document at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(b)
}

// Parse validates a YAML document already in memory.
func Parse(b []byte) (Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config yaml: %w", err)
	}

	if raw.Stream.ARN == "" {
		return Config{}, fmt.Errorf("config: stream.arn is required")
	}

	cfg := Config{
		StreamARN:               raw.Stream.ARN,
		InconsistencyRetryCount: defaultRetryCount,
		Parallelism:             1,
		CheckpointBackend:       "memory",
		LogLevel:                "info",
	}

	position := raw.Stream.InitialPosition
	if position == "" {
		position = defaultInitialPosition
	}
	switch position {
	case positionTrimHorizon:
		cfg.InitialPosition = splittracker.ModeTrimHorizon
	case positionLatest:
		cfg.InitialPosition = splittracker.ModeLatest
	case positionAtTimestamp:
		cfg.InitialPosition = splittracker.ModeAtTimestamp
		if raw.Stream.InitialTimestamp == "" {
			return Config{}, fmt.Errorf("config: stream.initial_timestamp is required when stream.initial_position=AT_TIMESTAMP")
		}
		ts, err := time.Parse(time.RFC3339, raw.Stream.InitialTimestamp)
		if err != nil {
			return Config{}, fmt.Errorf("config: stream.initial_timestamp: %w", err)
		}
		cfg.InitialTimestamp = ts
	default:
		return Config{}, fmt.Errorf("config: stream.initial_position %q is not one of TRIM_HORIZON, LATEST, AT_TIMESTAMP", position)
	}

	interval := raw.ShardDiscovery.Interval
	if interval == "" {
		interval = "5m"
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return Config{}, fmt.Errorf("config: shard_discovery.interval: %w", err)
	}
	cfg.ShardDiscoveryInterval = d

	if raw.DescribeStream.InconsistencyResolution.RetryCount > 0 {
		cfg.InconsistencyRetryCount = raw.DescribeStream.InconsistencyResolution.RetryCount
	}

	retention := raw.SplitRetention
	if retention == "" {
		retention = "168h"
	}
	r, err := time.ParseDuration(retention)
	if err != nil {
		return Config{}, fmt.Errorf("config: split_retention: %w", err)
	}
	cfg.SplitRetention = r

	if raw.Parallelism > 0 {
		cfg.Parallelism = raw.Parallelism
	}

	if raw.Checkpoint.Backend != "" {
		cfg.CheckpointBackend = raw.Checkpoint.Backend
	}
	if cfg.CheckpointBackend == "dynamodb" && raw.Checkpoint.DynamoDBTable == "" {
		return Config{}, fmt.Errorf("config: checkpoint.dynamodb_table is required when checkpoint.backend=dynamodb")
	}
	cfg.CheckpointTable = raw.Checkpoint.DynamoDBTable
	cfg.EnumeratorID = raw.Checkpoint.EnumeratorID
	if cfg.EnumeratorID == "" {
		cfg.EnumeratorID = "default"
	}

	if raw.Logging.Level != "" {
		cfg.LogLevel = raw.Logging.Level
	}

	return cfg, nil
}
