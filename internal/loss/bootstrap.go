// Package loss implements the bootstrap loss layer.
//
// Bootstrap loss is a softmax cross-entropy whose target at each position is
// a convex blend of a possibly-noisy label and the model's own prediction:
//
//	c_k  = beta*[k == noisy] + (1-beta)*t_k
//	loss = -sum_k c_k * log(max(p_k, eps))
//
// where p = softmax(logits) along the class axis and t_k is [k == argmax p]
// in hard mode or p_k in soft mode. The gradient with respect to the logits
// is p_k - c_k, with c treated as a constant target.
//
// Reference: Reed et al., "Training Deep Neural Networks on Noisy Labels
// with Bootstrapping" (2014).
package loss

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/bootloss/internal/blas"
	"github.com/born-ml/bootloss/internal/layer"
	"github.com/born-ml/bootloss/internal/mathx"
	"github.com/born-ml/bootloss/internal/ops"
	"github.com/born-ml/bootloss/internal/parallel"
	"github.com/born-ml/bootloss/internal/tensor"
)

// Registry names used by the layer.
const (
	TypeName    = "BootstrapLoss"
	SoftmaxName = "Softmax"
	ArgMaxName  = "ArgMax"
)

// ignored marks a position skipped because of the ignore label.
const ignored = -1

// Option configures a BootstrapLoss.
type Option func(*options)

type options struct {
	logger *zap.Logger
	par    parallel.Config
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		par:    parallel.DefaultConfig(),
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParallel sets how per-position loops are split across goroutines.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) {
		o.par = cfg
	}
}

// BootstrapLoss is the loss layer. Bottoms are {predictions, labels}; tops
// are {loss} or {loss, probabilities} when Config.ExposeProb is set.
//
// A BootstrapLoss is not safe for concurrent use.
type BootstrapLoss[T tensor.Float] struct {
	cfg      Config
	registry *layer.Registry[T]
	opts     options
	state    State

	softmax ops.Normalizer[T]
	argmax  ops.Reducer[T]

	predShape  tensor.Shape
	labelShape tensor.Shape
	axis       int
	outer      int
	classes    int
	inner      int

	prob   *tensor.Dense[T]
	plabel *tensor.Dense[int32]

	last []*tensor.Dense[T] // bottoms of the last Loss call, for Gradient
}

var _ layer.Layer[float32] = (*BootstrapLoss[float32])(nil)

// New creates a bootstrap loss layer. Sub-computations are resolved from
// registry at SetUp; a nil registry means NewRegistry with the same options.
func New[T tensor.Float](cfg Config, registry *layer.Registry[T], opts ...Option) (*BootstrapLoss[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = NewRegistry[T](opts...)
	}

	return &BootstrapLoss[T]{
		cfg:      cfg,
		registry: registry,
		opts:     o,
	}, nil
}

// Type returns the registry name of the layer.
func (l *BootstrapLoss[T]) Type() string {
	return TypeName
}

// Config returns the layer configuration.
func (l *BootstrapLoss[T]) Config() Config {
	return l.cfg
}

// State returns the current lifecycle state.
func (l *BootstrapLoss[T]) State() State {
	return l.state
}

// SetUp validates the configuration against the bottom shapes and builds
// the softmax and arg-max sub-computations. It may be called once.
func (l *BootstrapLoss[T]) SetUp(bottom []tensor.Shape) error {
	if l.state != Unconfigured {
		return fmt.Errorf("%w: SetUp called in state %s", ErrLifecycle, l.state)
	}
	if err := l.cfg.Validate(); err != nil {
		return err
	}
	if len(bottom) != 2 {
		return fmt.Errorf("%w: expected 2 bottoms (predictions, labels), got %d", ErrConfig, len(bottom))
	}

	pred := bottom[0]
	if err := pred.Validate(); err != nil {
		return fmt.Errorf("%w: predictions: %w", ErrConfig, err)
	}
	if len(pred) == 0 {
		return fmt.Errorf("%w: predictions must have at least one dimension", ErrConfig)
	}
	if _, err := pred.CanonicalAxis(l.cfg.Axis); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	softmax, err := l.registry.Normalizer(SoftmaxName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	argmax, err := l.registry.Reducer(ArgMaxName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := softmax.Configure(pred, l.cfg.Axis); err != nil {
		return fmt.Errorf("%w: softmax: %w", ErrConfig, err)
	}
	if err := argmax.Configure(pred, l.cfg.Axis); err != nil {
		return fmt.Errorf("%w: argmax: %w", ErrConfig, err)
	}
	l.softmax, l.argmax = softmax, argmax

	fields := []zap.Field{
		zap.Int("axis", l.cfg.Axis),
		zap.Bool("normalize", l.cfg.Normalize),
		zap.Bool("hard_mode", l.cfg.HardMode),
		zap.Float64("beta", l.cfg.Beta),
		zap.String("dtype", tensor.DTypeName[T]()),
	}
	if l.cfg.IgnoreLabel != nil {
		fields = append(fields, zap.Int("ignore_label", *l.cfg.IgnoreLabel))
	}
	l.opts.logger.Debug("bootstrap loss set up", fields...)

	l.state = Configured
	return nil
}

// Reshape binds the bottom shapes, reconfigures the sub-computations and
// returns the top shapes. The number of labels must equal outer*inner.
func (l *BootstrapLoss[T]) Reshape(bottom []tensor.Shape) ([]tensor.Shape, error) {
	if l.state == Unconfigured {
		return nil, fmt.Errorf("%w: Reshape called before SetUp", ErrLifecycle)
	}
	if len(bottom) != 2 {
		return nil, fmt.Errorf("%w: expected 2 bottoms (predictions, labels), got %d", ErrConfig, len(bottom))
	}

	pred, labels := bottom[0], bottom[1]
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: predictions: %w", ErrConfig, err)
	}
	if err := labels.Validate(); err != nil {
		return nil, fmt.Errorf("%w: labels: %w", ErrConfig, err)
	}
	if len(pred) == 0 {
		return nil, fmt.Errorf("%w: predictions must have at least one dimension", ErrConfig)
	}
	axis, err := pred.CanonicalAxis(l.cfg.Axis)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	outer := pred.Count(0, axis)
	inner := pred.Count(axis+1, len(pred))
	if outer*inner != labels.NumElements() {
		return nil, fmt.Errorf("%w: number of labels must match number of predictions; "+
			"with class axis %d and prediction shape %v the label count must be %d "+
			"(e.g. N*H*W for (N, C, H, W)), got %d labels of shape %v",
			ErrConfig, axis, pred, outer*inner, labels.NumElements(), labels)
	}

	if err := l.softmax.Configure(pred, axis); err != nil {
		return nil, fmt.Errorf("%w: softmax: %w", ErrConfig, err)
	}
	if err := l.argmax.Configure(pred, axis); err != nil {
		return nil, fmt.Errorf("%w: argmax: %w", ErrConfig, err)
	}

	l.predShape, l.labelShape = pred.Clone(), labels.Clone()
	l.axis, l.outer, l.classes, l.inner = axis, outer, pred[axis], inner
	l.prob, l.plabel = nil, nil
	l.state = ShapeBound

	l.opts.logger.Debug("bootstrap loss reshaped",
		zap.Stringer("predictions", pred),
		zap.Stringer("labels", labels),
		zap.Int("outer", outer),
		zap.Int("classes", l.classes),
		zap.Int("inner", inner),
	)

	top := []tensor.Shape{{1}}
	if l.cfg.ExposeProb {
		top = append(top, pred.Clone())
	}
	return top, nil
}

// Forward computes the loss. bottom is {predictions, labels}; the result is
// {loss} of shape (1), followed by a copy of the probabilities when
// Config.ExposeProb is set.
func (l *BootstrapLoss[T]) Forward(bottom []*tensor.Dense[T]) ([]*tensor.Dense[T], error) {
	if err := l.checkBottom("Forward", bottom, ShapeBound); err != nil {
		return nil, err
	}
	noisy, err := l.noisyLabels(bottom[1])
	if err != nil {
		return nil, err
	}

	prob, err := l.softmax.Compute(bottom[0])
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	plabel, err := l.argmax.Compute(prob)
	if err != nil {
		return nil, fmt.Errorf("argmax: %w", err)
	}
	l.prob, l.plabel = prob, plabel

	p, pl := prob.Data(), plabel.Data()
	classes, inner := l.classes, l.inner
	dim := classes * inner
	partial := make([]T, l.outer)
	valid := make([]int, l.outer)

	parallel.For(l.outer, l.opts.par, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			var sum T
			n := 0
			for j := 0; j < inner; j++ {
				label := noisy[i*inner+j]
				if label == ignored {
					continue
				}
				predicted := int(pl[i*inner+j])
				for k := 0; k < classes; k++ {
					pk := p[i*dim+k*inner+j]
					sum -= l.target(k, label, predicted, pk) * mathx.SafeLog(pk)
				}
				n++
			}
			partial[i], valid[i] = sum, n
		}
	})

	// Reduce in index order so the result does not depend on chunking.
	var total T
	count := 0
	for i := range partial {
		total += partial[i]
		count += valid[i]
	}
	if count == 0 && l.cfg.Normalize {
		l.opts.logger.Warn("bootstrap loss: every position ignored, loss is zero",
			zap.Stringer("labels", l.labelShape))
	}

	loss := tensor.New(tensor.Shape{1}, []T{total / l.denominator(count)})
	l.state = Evaluated

	top := []*tensor.Dense[T]{loss}
	if l.cfg.ExposeProb {
		top = append(top, prob.Clone())
	}
	return top, nil
}

// Backward computes the gradient with respect to the predictions.
//
// top[0] holds the gradient of the objective with respect to the loss
// (usually the loss weight). propagateDown must have one entry per bottom;
// requesting the label gradient fails with ErrLabelBackprop. The returned
// slice holds the prediction gradient, or nil when it was not requested,
// and nil for the labels.
func (l *BootstrapLoss[T]) Backward(top []*tensor.Dense[T], propagateDown []bool, bottom []*tensor.Dense[T]) ([]*tensor.Dense[T], error) {
	if len(propagateDown) != 2 {
		return nil, fmt.Errorf("%w: expected 2 propagate flags, got %d", ErrConfig, len(propagateDown))
	}
	if propagateDown[1] {
		return nil, ErrLabelBackprop
	}
	if err := l.checkBottom("Backward", bottom, Evaluated); err != nil {
		return nil, err
	}
	if len(top) == 0 || top[0] == nil || top[0].Len() == 0 {
		return nil, fmt.Errorf("%w: Backward needs the loss gradient as top[0]", ErrConfig)
	}
	if !propagateDown[0] {
		l.state = GradientReady
		return []*tensor.Dense[T]{nil, nil}, nil
	}

	noisy, err := l.noisyLabels(bottom[1])
	if err != nil {
		return nil, err
	}

	grad := tensor.Zeros[T](l.predShape)
	g, p, pl := grad.Data(), l.prob.Data(), l.plabel.Data()
	blas.Copy(p, g)

	classes, inner := l.classes, l.inner
	dim := classes * inner
	valid := make([]int, l.outer)

	parallel.For(l.outer, l.opts.par, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			n := 0
			for j := 0; j < inner; j++ {
				label := noisy[i*inner+j]
				if label == ignored {
					for k := 0; k < classes; k++ {
						g[i*dim+k*inner+j] = 0
					}
					continue
				}
				predicted := int(pl[i*inner+j])
				for k := 0; k < classes; k++ {
					idx := i*dim + k*inner + j
					g[idx] -= l.target(k, label, predicted, p[idx])
				}
				n++
			}
			valid[i] = n
		}
	})

	count := 0
	for _, n := range valid {
		count += n
	}
	blas.Scal(top[0].Data()[0]/l.denominator(count), g)

	l.state = GradientReady
	return []*tensor.Dense[T]{grad, nil}, nil
}

// Loss is a convenience wrapper that sets up and reshapes the layer as
// needed, runs Forward and returns the scalar loss.
func (l *BootstrapLoss[T]) Loss(pred, labels *tensor.Dense[T]) (T, error) {
	bottom := []tensor.Shape{pred.Shape(), labels.Shape()}
	if l.state == Unconfigured {
		if err := l.SetUp(bottom); err != nil {
			return 0, err
		}
	}
	if l.state == Configured || !l.predShape.Equal(bottom[0]) || !l.labelShape.Equal(bottom[1]) {
		if _, err := l.Reshape(bottom); err != nil {
			return 0, err
		}
	}

	top, err := l.Forward([]*tensor.Dense[T]{pred, labels})
	if err != nil {
		return 0, err
	}
	l.last = []*tensor.Dense[T]{pred, labels}
	return top[0].Data()[0], nil
}

// Gradient returns the prediction gradient for the inputs of the last Loss
// call, scaled by lossWeight.
func (l *BootstrapLoss[T]) Gradient(lossWeight T) (*tensor.Dense[T], error) {
	if l.last == nil {
		return nil, fmt.Errorf("%w: Gradient called before Loss", ErrLifecycle)
	}
	top := []*tensor.Dense[T]{tensor.New(tensor.Shape{1}, []T{lossWeight})}
	diff, err := l.Backward(top, []bool{true, false}, l.last)
	if err != nil {
		return nil, err
	}
	return diff[0], nil
}

// Prob returns a copy of the probabilities from the last Forward, or nil.
func (l *BootstrapLoss[T]) Prob() *tensor.Dense[T] {
	if l.prob == nil {
		return nil
	}
	return l.prob.Clone()
}

// PredictedLabels returns a copy of the arg-max labels from the last
// Forward, or nil.
func (l *BootstrapLoss[T]) PredictedLabels() *tensor.Dense[int32] {
	if l.plabel == nil {
		return nil
	}
	return l.plabel.Clone()
}

// target returns the blended weight c_k for class k.
func (l *BootstrapLoss[T]) target(k, noisy, predicted int, pk T) T {
	beta := T(l.cfg.Beta)
	var c T
	if k == noisy {
		c = beta
	}
	if l.cfg.HardMode {
		if k == predicted {
			c += 1 - beta
		}
	} else {
		c += (1 - beta) * pk
	}
	return c
}

// denominator is the loss normalizer. With no valid positions under
// normalization the sum is zero, so dividing by one yields a zero loss.
func (l *BootstrapLoss[T]) denominator(valid int) T {
	if l.cfg.Normalize {
		return T(max(valid, 1))
	}
	return T(l.outer)
}

// noisyLabels converts the label tensor to class indices, mapping ignored
// positions to -1 and rejecting labels outside [0, classes).
func (l *BootstrapLoss[T]) noisyLabels(labels *tensor.Dense[T]) ([]int, error) {
	data := labels.Data()
	out := make([]int, len(data))
	for i, v := range data {
		label := int(v)
		if l.cfg.IgnoreLabel != nil && label == *l.cfg.IgnoreLabel {
			out[i] = ignored
			continue
		}
		if label < 0 || label >= l.classes {
			return nil, fmt.Errorf("%w: label %d at position %d outside [0, %d)", ErrConfig, label, i, l.classes)
		}
		out[i] = label
	}
	return out, nil
}

// checkBottom verifies the call order and that bottom matches the shapes
// bound by the last Reshape.
func (l *BootstrapLoss[T]) checkBottom(op string, bottom []*tensor.Dense[T], atLeast State) error {
	if l.state < atLeast {
		return fmt.Errorf("%w: %s called in state %s", ErrLifecycle, op, l.state)
	}
	if len(bottom) != 2 || bottom[0] == nil || bottom[1] == nil {
		return fmt.Errorf("%w: %s expects 2 bottoms (predictions, labels)", ErrConfig, op)
	}
	if !bottom[0].Shape().Equal(l.predShape) || !bottom[1].Shape().Equal(l.labelShape) {
		return fmt.Errorf("%w: %s got shapes %v and %v, bound to %v and %v; reshape required",
			ErrLifecycle, op, bottom[0].Shape(), bottom[1].Shape(), l.predShape, l.labelShape)
	}
	return nil
}
