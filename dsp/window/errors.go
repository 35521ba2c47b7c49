package window

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when a window is requested with a non-positive size.
var ErrInvalidSize = errors.New("window: size must be > 0")

var (
	errEmptyCoeffs      = errors.New("window coefficients must not be empty")
	errZeroCoherentGain = errors.New("window coherent gain is zero")
)

func validateSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return nil
}

func validateType(t Type) error {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Errorf("window: unknown type %d", int(t))
	}
	return nil
}
