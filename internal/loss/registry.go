package loss

import (
	"fmt"

	"github.com/born-ml/bootloss/internal/layer"
	"github.com/born-ml/bootloss/internal/ops"
	"github.com/born-ml/bootloss/internal/tensor"
)

// NewRegistry returns a registry holding the softmax normalizer, the
// arg-max reducer and the bootstrap loss layer itself. The options are
// applied to every component the registry builds.
func NewRegistry[T tensor.Float](opts ...Option) *layer.Registry[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := layer.NewRegistry[T]()
	// Names are fixed and the registry is fresh, so registration cannot fail.
	mustRegister(r.RegisterNormalizer(SoftmaxName, func() ops.Normalizer[T] {
		return ops.NewSoftmax[T](o.par)
	}))
	mustRegister(r.RegisterReducer(ArgMaxName, func() ops.Reducer[T] {
		return ops.NewArgMax[T](o.par)
	}))
	mustRegister(r.RegisterLayer(TypeName, func(cfg any, reg *layer.Registry[T]) (layer.Layer[T], error) {
		c, err := configFrom(cfg)
		if err != nil {
			return nil, err
		}
		l, err := New(c, reg, opts...)
		if err != nil {
			return nil, err
		}
		return l, nil
	}))
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func configFrom(cfg any) (Config, error) {
	switch c := cfg.(type) {
	case nil:
		return DefaultConfig(), nil
	case Config:
		return c, nil
	case *Config:
		if c == nil {
			return DefaultConfig(), nil
		}
		return *c, nil
	default:
		return Config{}, fmt.Errorf("%w: %s expects loss.Config, got %T", ErrConfig, TypeName, cfg)
	}
}
