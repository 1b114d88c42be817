package loss

import (
	"fmt"
	"math"
)

// Config holds the layer options. It is read once by SetUp and not
// consulted for changes afterwards.
type Config struct {
	// Axis is the class dimension of the prediction tensor. Negative values
	// count from the end.
	Axis int `yaml:"axis"`

	// IgnoreLabel, when set, marks positions whose noisy label equals it.
	// They contribute neither loss nor gradient and are not counted as valid.
	IgnoreLabel *int `yaml:"ignore_label,omitempty"`

	// Normalize divides by the number of valid positions instead of the
	// outer extent.
	Normalize bool `yaml:"normalize"`

	// HardMode blends the noisy label with the one-hot arg-max of the
	// prediction instead of the full probability vector.
	HardMode bool `yaml:"hard_mode"`

	// Beta is the weight given to the noisy label, in [0, 1].
	Beta float64 `yaml:"beta"`

	// ExposeProb adds the softmax probabilities as a second output.
	ExposeProb bool `yaml:"expose_prob"`
}

// DefaultConfig returns the configuration used when no options are given:
// class axis 1, no ignore label, normalized, soft mode with beta 0.95.
func DefaultConfig() Config {
	return Config{
		Axis:      1,
		Normalize: true,
		Beta:      0.95,
	}
}

// WithIgnoreLabel returns a copy of c that skips positions labeled v.
func (c Config) WithIgnoreLabel(v int) Config {
	c.IgnoreLabel = &v
	return c
}

// Validate checks option ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.Beta) || c.Beta < 0 || c.Beta > 1 {
		return fmt.Errorf("%w: beta %v outside [0, 1]", ErrConfig, c.Beta)
	}
	return nil
}
