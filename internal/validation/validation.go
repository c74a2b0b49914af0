// Package validation provides centralized input validation for dcmon.
package validation

import (
	"fmt"
	"unicode"

	"github.com/xtxerr/dcmon/internal/errors"
)

// =============================================================================
// Metric Name Validation
// =============================================================================

const (
	// MaxMetricNameLength bounds metric names; agents generate names from
	// fixed exporter tables, so anything longer indicates a broken agent.
	MaxMetricNameLength = 255

	// MaxLabelKeyLength and MaxLabelValueLength bound label dimensions.
	MaxLabelKeyLength   = 128
	MaxLabelValueLength = 512

	// MaxLabelsPerRecord bounds the number of dimensions on one record.
	MaxLabelsPerRecord = 32
)

// ValidateMetricName checks a metric name: non-empty, bounded length,
// starts with a letter, and contains only letters, digits and underscores.
func ValidateMetricName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", errors.ErrInvalidName)
	}
	if len(name) > MaxMetricNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", errors.ErrInvalidName, MaxMetricNameLength)
	}

	for i, r := range name {
		if i == 0 && !unicode.IsLetter(r) {
			return fmt.Errorf("%w: must start with a letter: %q", errors.ErrInvalidName, name)
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return fmt.Errorf("%w: invalid character %q in %q", errors.ErrInvalidName, r, name)
		}
	}

	return nil
}

// ValidateLabels checks a label map for size and content limits. Label
// values are free-form (sensor names contain spaces and punctuation), but
// keys follow identifier rules and neither side may be empty or oversized.
func ValidateLabels(labels map[string]string) error {
	if len(labels) > MaxLabelsPerRecord {
		return fmt.Errorf("%w: %d labels exceeds limit of %d", errors.ErrInvalidLabel, len(labels), MaxLabelsPerRecord)
	}

	for k, v := range labels {
		if k == "" {
			return fmt.Errorf("%w: empty key", errors.ErrInvalidLabel)
		}
		if len(k) > MaxLabelKeyLength {
			return fmt.Errorf("%w: key %q exceeds %d characters", errors.ErrInvalidLabel, k, MaxLabelKeyLength)
		}
		if len(v) > MaxLabelValueLength {
			return fmt.Errorf("%w: value for %q exceeds %d characters", errors.ErrInvalidLabel, k, MaxLabelValueLength)
		}
		for i, r := range k {
			if i == 0 && !unicode.IsLetter(r) {
				return fmt.Errorf("%w: key must start with a letter: %q", errors.ErrInvalidLabel, k)
			}
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				return fmt.Errorf("%w: invalid character %q in key %q", errors.ErrInvalidLabel, r, k)
			}
		}
	}

	return nil
}

// ValidateTimeRange checks that start <= end and both are non-negative.
func ValidateTimeRange(start, end int64) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("%w: negative bound", errors.ErrInvalidRange)
	}
	if start > end {
		return fmt.Errorf("%w: start %d after end %d", errors.ErrInvalidRange, start, end)
	}
	return nil
}
