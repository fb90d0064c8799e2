package thresholds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// Direction states which side of a limit counts as degradation.
type Direction string

const (
	// HigherIsWorse flags metrics where larger values breach (latency,
	// CPU, queue depth). All metrics in the default table use it.
	HigherIsWorse Direction = "higher"
	// LowerIsWorse flags inverse metrics (e.g. free capacity).
	LowerIsWorse Direction = "lower"
)

// Limit holds the warning/critical pair for one (domain, metric).
type Limit struct {
	Warning   float64   `yaml:"warning"`
	Critical  float64   `yaml:"critical"`
	Direction Direction `yaml:"direction"`
}

// Table is the immutable threshold configuration, loaded once at process
// start and shared read-only by all analyses.
type Table struct {
	limits map[models.Domain]map[string]Limit
}

// ConfigurationError marks an invalid threshold table. It is fatal at
// startup and never raised per-request.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "threshold configuration: " + e.Reason
}

type tableFile struct {
	Domains map[string]map[string]Limit `yaml:"domains"`
}

// Default returns the built-in threshold table.
func Default() *Table {
	t := &Table{limits: map[models.Domain]map[string]Limit{
		models.DomainCompute: {
			"cpu_usage_percentage":    {Warning: 80, Critical: 90, Direction: HigherIsWorse},
			"memory_usage_percentage": {Warning: 80, Critical: 90, Direction: HigherIsWorse},
			"restart_count":           {Warning: 5, Critical: 10, Direction: HigherIsWorse},
		},
		models.DomainStorage: {
			"cpu_utilization":      {Warning: 90, Critical: 95, Direction: HigherIsWorse},
			"database_connections": {Warning: 200, Critical: 250, Direction: HigherIsWorse},
			"commit_latency":       {Warning: 25, Critical: 50, Direction: HigherIsWorse},
			"select_latency":       {Warning: 50, Critical: 100, Direction: HigherIsWorse},
		},
		models.DomainQueue: {
			"approximate_age_of_oldest_message":      {Warning: 300, Critical: 600, Direction: HigherIsWorse},
			"approximate_number_of_messages_visible": {Warning: 500, Critical: 1000, Direction: HigherIsWorse},
			"number_of_messages_received":            {Warning: 1800, Critical: 4500, Direction: HigherIsWorse},
		},
	}}
	return t
}

// Load reads a threshold table from a YAML file. An empty path returns the
// default table. Validation failures are ConfigurationErrors and should
// abort startup.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("file %s not found", path)}
		}
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	t := &Table{limits: make(map[models.Domain]map[string]Limit, len(file.Domains))}
	for name, metrics := range file.Domains {
		domain := models.Domain(name)
		t.limits[domain] = make(map[string]Limit, len(metrics))
		for metric, limit := range metrics {
			if limit.Direction == "" {
				limit.Direction = HigherIsWorse
			}
			t.limits[domain][metric] = limit
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that every infrastructure domain has at least one metric
// and that each limit pair is ordered sensibly for its direction.
func (t *Table) Validate() error {
	for _, domain := range models.Domains {
		metrics, ok := t.limits[domain]
		if !ok || len(metrics) == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("domain %s has no configured metrics", domain)}
		}
		for metric, limit := range metrics {
			switch limit.Direction {
			case HigherIsWorse:
				if limit.Critical < limit.Warning {
					return &ConfigurationError{Reason: fmt.Sprintf("%s/%s: critical below warning", domain, metric)}
				}
			case LowerIsWorse:
				if limit.Critical > limit.Warning {
					return &ConfigurationError{Reason: fmt.Sprintf("%s/%s: critical above warning", domain, metric)}
				}
			default:
				return &ConfigurationError{Reason: fmt.Sprintf("%s/%s: unknown direction %q", domain, metric, limit.Direction)}
			}
		}
	}
	return nil
}

// Lookup returns the limit for a (domain, metric) pair.
func (t *Table) Lookup(domain models.Domain, metric string) (Limit, bool) {
	limit, ok := t.limits[domain][metric]
	return limit, ok
}

// Metrics returns the configured metric names for a domain, sorted for
// deterministic iteration.
func (t *Table) Metrics(domain models.Domain) []string {
	names := make([]string, 0, len(t.limits[domain]))
	for metric := range t.limits[domain] {
		names = append(names, metric)
	}
	sort.Strings(names)
	return names
}

// Classify applies the table-driven comparator: crossing the critical limit
// wins over warning, and the direction decides which side counts as a
// crossing. The second return is false when the metric has no configured
// limit.
func (t *Table) Classify(domain models.Domain, metric string, value float64) (models.Severity, bool) {
	limit, ok := t.limits[domain][metric]
	if !ok {
		return "", false
	}
	switch limit.Direction {
	case LowerIsWorse:
		if value <= limit.Critical {
			return models.SeverityCritical, true
		}
		if value <= limit.Warning {
			return models.SeverityWarning, true
		}
	default:
		if value >= limit.Critical {
			return models.SeverityCritical, true
		}
		if value >= limit.Warning {
			return models.SeverityWarning, true
		}
	}
	return "", false
}
