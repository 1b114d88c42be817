// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package loss

import (
	"go.uber.org/zap"

	"github.com/born-ml/bootloss/internal/layer"
	"github.com/born-ml/bootloss/internal/loss"
	"github.com/born-ml/bootloss/internal/ops"
	"github.com/born-ml/bootloss/internal/parallel"
	"github.com/born-ml/bootloss/internal/tensor"
)

// BootstrapLoss is the bootstrap loss layer.
type BootstrapLoss[T tensor.Float] = loss.BootstrapLoss[T]

// Config holds the layer options.
type Config = loss.Config

// Layer is the lifecycle contract host frameworks drive layers through.
type Layer[T tensor.Float] = layer.Layer[T]

// Registry maps type names to layer and sub-computation factories.
type Registry[T tensor.Float] = layer.Registry[T]

// Normalizer is the softmax strategy interface.
type Normalizer[T tensor.Float] = ops.Normalizer[T]

// Reducer is the arg-max strategy interface.
type Reducer[T tensor.Float] = ops.Reducer[T]

// Option configures a BootstrapLoss.
type Option = loss.Option

// ParallelConfig controls how per-position loops are split across goroutines.
type ParallelConfig = parallel.Config

// State is the position of a layer in its lifecycle.
type State = loss.State

// Lifecycle states.
const (
	Unconfigured  = loss.Unconfigured
	Configured    = loss.Configured
	ShapeBound    = loss.ShapeBound
	Evaluated     = loss.Evaluated
	GradientReady = loss.GradientReady
)

// Registry names.
const (
	TypeName    = loss.TypeName
	SoftmaxName = loss.SoftmaxName
	ArgMaxName  = loss.ArgMaxName
)

// Errors.
var (
	ErrConfig        = loss.ErrConfig
	ErrLifecycle     = loss.ErrLifecycle
	ErrLabelBackprop = loss.ErrLabelBackprop
	ErrUnknownType   = layer.ErrUnknownType
	ErrDuplicate     = layer.ErrDuplicate
)

// DefaultConfig returns class axis 1, no ignore label, normalized, soft mode
// with beta 0.95.
func DefaultConfig() Config {
	return loss.DefaultConfig()
}

// New creates a bootstrap loss layer. A nil registry means NewRegistry.
//
// Example:
//
//	criterion, err := loss.New[float32](loss.DefaultConfig(), nil)
func New[T tensor.Float](cfg Config, registry *Registry[T], opts ...Option) (*BootstrapLoss[T], error) {
	return loss.New(cfg, registry, opts...)
}

// NewRegistry returns a registry with the default softmax, arg-max and
// bootstrap loss factories.
func NewRegistry[T tensor.Float](opts ...Option) *Registry[T] {
	return loss.NewRegistry[T](opts...)
}

// NewEmptyRegistry returns a registry with nothing registered.
func NewEmptyRegistry[T tensor.Float]() *Registry[T] {
	return layer.NewRegistry[T]()
}

// WithLogger sets the logger used for setup and diagnostics.
func WithLogger(l *zap.Logger) Option {
	return loss.WithLogger(l)
}

// WithParallel sets how per-position loops are split across goroutines.
func WithParallel(cfg ParallelConfig) Option {
	return loss.WithParallel(cfg)
}

// DefaultParallel returns a parallel configuration sized to the CPU count.
func DefaultParallel() ParallelConfig {
	return parallel.DefaultConfig()
}

// Sequential returns a configuration that keeps all work on the caller's
// goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}
