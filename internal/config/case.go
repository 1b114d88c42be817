package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/bootloss/internal/tensor"
)

// Case is a self-contained evaluation input: a layer definition plus the
// prediction and label tensors to run it on.
type Case struct {
	Layer       LayerParameter `yaml:"layer"`
	Shape       []int          `yaml:"shape"`
	Predictions []float64      `yaml:"predictions"`
	Labels      []float64      `yaml:"labels"`
	LabelShape  []int          `yaml:"label_shape,omitempty"`

	// TopDiff is the gradient of the objective with respect to the loss.
	// Zero means 1.
	TopDiff float64 `yaml:"top_diff,omitempty"`
}

// LoadCase reads and validates a case file.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case: %w", err)
	}

	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: decode case: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Validate checks that the tensors agree with their shapes.
func (c *Case) Validate() error {
	if err := c.Layer.Validate(); err != nil {
		return err
	}
	shape := tensor.Shape(c.Shape)
	if len(shape) == 0 {
		return fmt.Errorf("%w: case needs a prediction shape", ErrInvalid)
	}
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if len(c.Predictions) != shape.NumElements() {
		return fmt.Errorf("%w: shape %v needs %d predictions, got %d",
			ErrInvalid, shape, shape.NumElements(), len(c.Predictions))
	}
	if ls := c.LabelShapeOrDefault(); ls.NumElements() != len(c.Labels) {
		return fmt.Errorf("%w: label shape %v needs %d labels, got %d",
			ErrInvalid, ls, ls.NumElements(), len(c.Labels))
	}
	if c.TopDiff == 0 {
		c.TopDiff = 1
	}
	return nil
}

// LabelShapeOrDefault returns LabelShape, or a flat shape holding every label.
func (c *Case) LabelShapeOrDefault() tensor.Shape {
	if len(c.LabelShape) > 0 {
		return tensor.Shape(c.LabelShape)
	}
	return tensor.Shape{len(c.Labels)}
}
