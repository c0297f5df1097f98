// Package proximity implements the per-frame vehicle proximity alarm: depth to distance
// calibration, alarm decisions, marker generation and frame annotation.
package proximity

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/proximity/utils"
)

// Defaults used when a configuration leaves a field unset.
const (
	DefaultReferenceDistanceM = 2.0
	DefaultScaleFactor        = 1.0
	DefaultAlarmThresholdM    = 1.0
	DefaultUnitConversion     = 1.0
	DefaultMarkerSize         = 0.5
	DefaultDistanceUnit       = "m"
)

var (
	defaultVehicleClasses = []string{"car", "truck", "bus"}
	defaultIgnoredClasses = []string{"road"}
)

// Config holds the constants of the alarm pipeline.
type Config struct {
	// VehicleClasses are the labels that calibrate the scale factor and can raise alarms.
	VehicleClasses []string `json:"vehicle_classes" yaml:"vehicle_classes"`
	// IgnoredClasses are dropped before depth estimation and annotation.
	IgnoredClasses []string `json:"ignored_classes" yaml:"ignored_classes"`

	// ReferenceDistanceM is the distance, in meters, every calibrating vehicle is assumed to be at.
	ReferenceDistanceM float64 `json:"reference_distance_m" yaml:"reference_distance_m"`
	// DefaultScaleFactor is used until the first vehicle calibrates.
	DefaultScaleFactor float64 `json:"default_scale_factor" yaml:"default_scale_factor"`
	// AlarmThresholdM is the alarm distance in meters. It is compared in converted units.
	AlarmThresholdM float64 `json:"alarm_threshold_m" yaml:"alarm_threshold_m"`
	// UnitConversion multiplies meters into the reported distance unit, e.g. 100 for centimeters.
	UnitConversion float64 `json:"unit_conversion" yaml:"unit_conversion"`
	// DistanceUnit is the suffix drawn after distances.
	DistanceUnit string `json:"distance_unit" yaml:"distance_unit"`
	// MarkerSize is the sphere radius and cube side of alarm markers.
	MarkerSize float64 `json:"marker_size" yaml:"marker_size"`
}

// DefaultConfig returns the configuration of the classic demo: cars, trucks and buses closer
// than one meter raise an alarm, roads are ignored.
func DefaultConfig() Config {
	return Config{
		VehicleClasses:     append([]string(nil), defaultVehicleClasses...),
		IgnoredClasses:     append([]string(nil), defaultIgnoredClasses...),
		ReferenceDistanceM: DefaultReferenceDistanceM,
		DefaultScaleFactor: DefaultScaleFactor,
		AlarmThresholdM:    DefaultAlarmThresholdM,
		UnitConversion:     DefaultUnitConversion,
		DistanceUnit:       DefaultDistanceUnit,
		MarkerSize:         DefaultMarkerSize,
	}
}

// Validate fills unset fields with defaults and checks the rest.
func (cfg *Config) Validate(path string) error {
	if cfg.VehicleClasses == nil {
		cfg.VehicleClasses = append([]string(nil), defaultVehicleClasses...)
	}
	if cfg.IgnoredClasses == nil {
		cfg.IgnoredClasses = append([]string(nil), defaultIgnoredClasses...)
	}
	if len(cfg.VehicleClasses) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "vehicle_classes")
	}
	if overlap := lo.Intersect(cfg.VehicleClasses, cfg.IgnoredClasses); len(overlap) > 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("classes %v are both vehicle and ignored classes", overlap))
	}

	fields := []struct {
		name  string
		value *float64
		def   float64
	}{
		{"reference_distance_m", &cfg.ReferenceDistanceM, DefaultReferenceDistanceM},
		{"default_scale_factor", &cfg.DefaultScaleFactor, DefaultScaleFactor},
		{"alarm_threshold_m", &cfg.AlarmThresholdM, DefaultAlarmThresholdM},
		{"unit_conversion", &cfg.UnitConversion, DefaultUnitConversion},
		{"marker_size", &cfg.MarkerSize, DefaultMarkerSize},
	}
	for _, f := range fields {
		if *f.value == 0 {
			*f.value = f.def
		}
		if !isPositive(*f.value) {
			return utils.NewConfigValidationError(path,
				errors.Errorf("%q must be a positive number, got %v", f.name, *f.value))
		}
	}
	if cfg.DistanceUnit == "" {
		cfg.DistanceUnit = DefaultDistanceUnit
	}
	return nil
}

// IsVehicle reports whether label is a vehicle class.
func (cfg *Config) IsVehicle(label string) bool {
	return lo.Contains(cfg.VehicleClasses, label)
}

// IsIgnored reports whether label is an ignored class.
func (cfg *Config) IsIgnored(label string) bool {
	return lo.Contains(cfg.IgnoredClasses, label)
}

// Threshold is the alarm threshold in reported distance units.
func (cfg *Config) Threshold() float64 {
	return cfg.AlarmThresholdM * cfg.UnitConversion
}

// FormatDistance renders a distance the way frame labels show it.
func (cfg *Config) FormatDistance(d float64) string {
	return fmt.Sprintf("%.2f%s", d, cfg.DistanceUnit)
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
