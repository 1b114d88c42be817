// Package config decodes layer definitions and evaluation cases from YAML.
//
// A layer definition groups options the way the host framework's layer
// parameters do:
//
//	name: loss
//	type: BootstrapLoss
//	dtype: float32
//	top: [loss, prob]
//	loss_param:
//	  ignore_label: 255
//	  normalize: true
//	bootstrap_param:
//	  beta: 0.8
//	  is_hard_mode: true
//	softmax_param:
//	  axis: 1
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/bootloss/internal/loss"
)

// ErrInvalid is returned for definitions that decode but cannot be used.
var ErrInvalid = errors.New("invalid layer definition")

// LossParameter holds options shared by loss layers.
type LossParameter struct {
	IgnoreLabel *int  `yaml:"ignore_label,omitempty"`
	Normalize   *bool `yaml:"normalize,omitempty"`
}

// BootstrapParameter holds options specific to the bootstrap loss.
type BootstrapParameter struct {
	Beta       *float64 `yaml:"beta,omitempty"`
	IsHardMode bool     `yaml:"is_hard_mode"`
}

// SoftmaxParameter holds options of the softmax sub-computation.
type SoftmaxParameter struct {
	Axis *int `yaml:"axis,omitempty"`
}

// LayerParameter is one layer definition.
type LayerParameter struct {
	Name           string             `yaml:"name"`
	Type           string             `yaml:"type"`
	DType          string             `yaml:"dtype,omitempty"`
	Top            []string           `yaml:"top,omitempty"`
	LossParam      LossParameter      `yaml:"loss_param"`
	BootstrapParam BootstrapParameter `yaml:"bootstrap_param"`
	SoftmaxParam   SoftmaxParameter   `yaml:"softmax_param"`
}

// Load reads a layer definition from a file.
func Load(path string) (*LayerParameter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layer definition: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a layer definition. Unknown keys are rejected.
func Parse(r io.Reader) (*LayerParameter, error) {
	var p LayerParameter
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode layer definition: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks fields that do not depend on tensor shapes.
func (p *LayerParameter) Validate() error {
	if p.Type == "" {
		p.Type = loss.TypeName
	}
	if p.Type != loss.TypeName {
		return fmt.Errorf("%w: type %q, only %q is supported", ErrInvalid, p.Type, loss.TypeName)
	}
	switch p.DType {
	case "":
		p.DType = "float32"
	case "float32", "float64":
	default:
		return fmt.Errorf("%w: dtype %q (want float32 or float64)", ErrInvalid, p.DType)
	}
	if len(p.Top) > 2 {
		return fmt.Errorf("%w: %d tops, at most 2 (loss, prob)", ErrInvalid, len(p.Top))
	}
	_, err := p.LossConfig()
	return err
}

// LossConfig maps the definition onto a loss.Config, filling unset fields
// from loss.DefaultConfig. A second top requests the probability output.
func (p *LayerParameter) LossConfig() (loss.Config, error) {
	cfg := loss.DefaultConfig()
	if p.SoftmaxParam.Axis != nil {
		cfg.Axis = *p.SoftmaxParam.Axis
	}
	if p.LossParam.IgnoreLabel != nil {
		cfg = cfg.WithIgnoreLabel(*p.LossParam.IgnoreLabel)
	}
	if p.LossParam.Normalize != nil {
		cfg.Normalize = *p.LossParam.Normalize
	}
	if p.BootstrapParam.Beta != nil {
		cfg.Beta = *p.BootstrapParam.Beta
	}
	cfg.HardMode = p.BootstrapParam.IsHardMode
	cfg.ExposeProb = len(p.Top) >= 2

	if err := cfg.Validate(); err != nil {
		return loss.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}
