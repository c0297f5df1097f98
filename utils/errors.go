package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewConfigValidationFieldRequiredError is used when a config field is missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return errors.Errorf("%s: %q is required", path, field)
}

// NewConfigValidationError is used when a config field has an invalid value.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}
