package engine

import (
	"errors"
	"fmt"
)

// ConfigurationError reports structurally missing engine configuration, such
// as an absent feature weight or a plan without a base price. There is no
// sane default for either, so the affected call fails with no partial
// result.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// WarningKind identifies a non-fatal input condition noticed while scoring.
type WarningKind string

const (
	// WarnInputDefaulted means an absent field was substituted with its
	// documented default.
	WarnInputDefaulted WarningKind = "input_defaulted"
	// WarnRangeClamped means an out-of-domain value was clamped into range
	// before use.
	WarnRangeClamped WarningKind = "range_clamped"
)

// Warning records one non-fatal input substitution. Scoring always proceeds
// past warnings; callers may log them.
type Warning struct {
	Kind  WarningKind
	Field string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Field)
}
