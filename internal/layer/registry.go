package layer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/bootloss/internal/ops"
	"github.com/born-ml/bootloss/internal/tensor"
)

var (
	// ErrUnknownType is returned when a name has no registered factory.
	ErrUnknownType = errors.New("unknown layer type")

	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("layer type already registered")
)

// NormalizerFactory builds an unconfigured normalizer.
type NormalizerFactory[T tensor.Float] func() ops.Normalizer[T]

// ReducerFactory builds an unconfigured reducer.
type ReducerFactory[T tensor.Float] func() ops.Reducer[T]

// Factory builds a layer from a decoded configuration value. The registry
// itself is passed so the layer can resolve its own sub-computations.
type Factory[T tensor.Float] func(cfg any, r *Registry[T]) (Layer[T], error)

// Registry maps type names to factories.
//
// A Registry is an ordinary value: callers build one, register what they
// need and hand it to the layers that should use it. It is not safe for
// concurrent registration.
type Registry[T tensor.Float] struct {
	normalizers map[string]NormalizerFactory[T]
	reducers    map[string]ReducerFactory[T]
	layers      map[string]Factory[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T tensor.Float]() *Registry[T] {
	return &Registry[T]{
		normalizers: make(map[string]NormalizerFactory[T]),
		reducers:    make(map[string]ReducerFactory[T]),
		layers:      make(map[string]Factory[T]),
	}
}

// RegisterNormalizer adds a normalizer factory under name.
func (r *Registry[T]) RegisterNormalizer(name string, f NormalizerFactory[T]) error {
	if _, ok := r.normalizers[name]; ok {
		return fmt.Errorf("%w: normalizer %q", ErrDuplicate, name)
	}
	r.normalizers[name] = f
	return nil
}

// RegisterReducer adds a reducer factory under name.
func (r *Registry[T]) RegisterReducer(name string, f ReducerFactory[T]) error {
	if _, ok := r.reducers[name]; ok {
		return fmt.Errorf("%w: reducer %q", ErrDuplicate, name)
	}
	r.reducers[name] = f
	return nil
}

// RegisterLayer adds a layer factory under name.
func (r *Registry[T]) RegisterLayer(name string, f Factory[T]) error {
	if _, ok := r.layers[name]; ok {
		return fmt.Errorf("%w: layer %q", ErrDuplicate, name)
	}
	r.layers[name] = f
	return nil
}

// Normalizer builds the normalizer registered under name.
func (r *Registry[T]) Normalizer(name string) (ops.Normalizer[T], error) {
	f, ok := r.normalizers[name]
	if !ok {
		return nil, fmt.Errorf("%w: normalizer %q", ErrUnknownType, name)
	}
	return f(), nil
}

// Reducer builds the reducer registered under name.
func (r *Registry[T]) Reducer(name string) (ops.Reducer[T], error) {
	f, ok := r.reducers[name]
	if !ok {
		return nil, fmt.Errorf("%w: reducer %q", ErrUnknownType, name)
	}
	return f(), nil
}

// Layer builds the layer registered under name from cfg.
func (r *Registry[T]) Layer(name string, cfg any) (Layer[T], error) {
	f, ok := r.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q", ErrUnknownType, name)
	}
	return f(cfg, r)
}

// Types returns the registered layer names in sorted order.
func (r *Registry[T]) Types() []string {
	names := make([]string, 0, len(r.layers))
	for name := range r.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
