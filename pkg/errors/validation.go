package errors

import "math"

// ValidatePositive rejects zero, negative and non-finite values.
// The name is used verbatim in the error message.
func ValidatePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidInput, "%s must be a finite number", name)
	}
	if v <= 0 {
		return New(ErrCodeInvalidInput, "%s must be positive, got %g", name, v)
	}
	return nil
}

// ValidateNonNegative rejects negative and non-finite values.
func ValidateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidInput, "%s must be a finite number", name)
	}
	if v < 0 {
		return New(ErrCodeInvalidInput, "%s must not be negative, got %g", name, v)
	}
	return nil
}

// ValidatePositiveInt rejects values below one.
func ValidatePositiveInt(name string, v int) error {
	if v < 1 {
		return New(ErrCodeInvalidInput, "%s must be at least 1, got %d", name, v)
	}
	return nil
}
