package loss_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/bootloss/internal/layer"
	"github.com/born-ml/bootloss/internal/loss"
	"github.com/born-ml/bootloss/internal/parallel"
	"github.com/born-ml/bootloss/internal/tensor"
)

// softmaxRef computes softmax over a single vector.
func softmaxRef(z []float64) []float64 {
	m := floats.Max(z)
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// column extracts the class vector at (i, j) of an (outer, classes, inner)
// buffer.
func column(data []float64, classes, inner, i, j int) []float64 {
	col := make([]float64, classes)
	for k := range col {
		col[k] = data[i*classes*inner+k*inner+j]
	}
	return col
}

// numericalGradient estimates df/dx with central differences.
func numericalGradient(xs []float64, f func() float64) []float64 {
	const h = 1e-5
	grad := make([]float64, len(xs))
	for i := range xs {
		tmp := xs[i]
		xs[i] = tmp + h
		y1 := f()
		xs[i] = tmp - h
		y2 := f()
		grad[i] = (y1 - y2) / (2 * h)
		xs[i] = tmp
	}
	return grad
}

func randomLogits(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 2
	}
	return out
}

func newLayer(t *testing.T, cfg loss.Config) *loss.BootstrapLoss[float64] {
	t.Helper()
	l, err := loss.New[float64](cfg, nil, loss.WithParallel(parallel.Sequential()))
	require.NoError(t, err)
	return l
}

func hardConfig(beta float64) loss.Config {
	cfg := loss.DefaultConfig()
	cfg.HardMode = true
	cfg.Beta = beta
	return cfg
}

func softConfig(beta float64) loss.Config {
	cfg := loss.DefaultConfig()
	cfg.Beta = beta
	return cfg
}

func TestBootstrapLoss_LabelAgreesWithModel(t *testing.T) {
	l := newLayer(t, hardConfig(0.5))
	pred := tensor.New(tensor.Shape{1, 3}, []float64{2, 1, 0})
	labels := tensor.New(tensor.Shape{1}, []float64{0})

	got, err := l.Loss(pred, labels)
	require.NoError(t, err)

	p := softmaxRef([]float64{2, 1, 0})
	assert.Equal(t, []int32{0}, l.PredictedLabels().Data())
	assert.InDelta(t, -math.Log(p[0]), got, 1e-12, "blend collapses to plain cross-entropy")

	grad, err := l.Gradient(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{p[0] - 1, p[1], p[2]}, grad.Data(), 1e-12)
}

func TestBootstrapLoss_LabelDisagreesWithModel(t *testing.T) {
	l := newLayer(t, hardConfig(0.5))
	pred := tensor.New(tensor.Shape{1, 3}, []float64{2, 1, 0})
	labels := tensor.New(tensor.Shape{1}, []float64{2})

	got, err := l.Loss(pred, labels)
	require.NoError(t, err)

	p := softmaxRef([]float64{2, 1, 0})
	assert.InDelta(t, -0.5*math.Log(p[0])-0.5*math.Log(p[2]), got, 1e-12)

	grad, err := l.Gradient(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{p[0] - 0.5, p[1], p[2] - 0.5}, grad.Data(), 1e-12)
}

func TestBootstrapLoss_BetaOneIsCrossEntropy(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	shape := tensor.Shape{3, 4, 2} // outer 3, classes 4, inner 2
	logits := randomLogits(rng, shape.NumElements())
	labels := []float64{0, 3, 1, 1, 2, 0}

	var want float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			p := softmaxRef(column(logits, 4, 2, i, j))
			want -= math.Log(p[int(labels[i*2+j])])
		}
	}

	for _, tc := range []struct {
		name      string
		cfg       loss.Config
		normalize bool
		want      float64
	}{
		{"hard normalized", hardConfig(1), true, want / 6},
		{"soft normalized", softConfig(1), true, want / 6},
		{"hard per outer", hardConfig(1), false, want / 3},
		{"soft per outer", softConfig(1), false, want / 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.Normalize = tc.normalize
			l := newLayer(t, cfg)
			got, err := l.Loss(tensor.New(shape, logits), tensor.New(tensor.Shape{3, 2}, labels))
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestBootstrapLoss_BetaZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	logits := randomLogits(rng, 2*5)
	pred := tensor.New(tensor.Shape{2, 5}, logits)
	labels := tensor.New(tensor.Shape{2}, []float64{4, 4})

	var hard, entropy float64
	for i := 0; i < 2; i++ {
		p := softmaxRef(logits[i*5 : (i+1)*5])
		hard -= math.Log(p[floats.MaxIdx(p)])
		for _, pk := range p {
			entropy -= pk * math.Log(pk)
		}
	}

	l := newLayer(t, hardConfig(0))
	got, err := l.Loss(pred, labels)
	require.NoError(t, err)
	assert.InDelta(t, hard/2, got, 1e-12, "hard mode: cross-entropy against own arg-max")

	l = newLayer(t, softConfig(0))
	got, err = l.Loss(pred, labels)
	require.NoError(t, err)
	assert.InDelta(t, entropy/2, got, 1e-12, "soft mode: entropy of the prediction")
}

func TestBootstrapLoss_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	shape := tensor.Shape{4, 3, 5}
	labelShape := tensor.Shape{4, 5}

	for _, cfg := range []loss.Config{hardConfig(0.8), softConfig(0.95), hardConfig(0.3), softConfig(0.1)} {
		for trial := 0; trial < 5; trial++ {
			logits := randomLogits(rng, shape.NumElements())
			labels := make([]float64, labelShape.NumElements())
			for i := range labels {
				labels[i] = float64(rng.IntN(3))
			}

			l := newLayer(t, cfg)
			got, err := l.Loss(tensor.New(shape, logits), tensor.New(labelShape, labels))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, 0.0)

			grad, err := l.Gradient(1)
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				for j := 0; j < 5; j++ {
					assert.InDelta(t, 0, floats.Sum(column(grad.Data(), 3, 5, i, j)), 1e-12)
				}
			}
		}
	}
}

func TestBootstrapLoss_IgnoreLabel(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	logits := randomLogits(rng, 4*3)
	pred := tensor.New(tensor.Shape{4, 3}, logits)
	labels := tensor.New(tensor.Shape{4}, []float64{1, 255, 0, 255})

	cfg := hardConfig(0.8).WithIgnoreLabel(255)
	l := newLayer(t, cfg)
	got, err := l.Loss(pred, labels)
	require.NoError(t, err)

	// Same loss as a batch holding only the two valid rows.
	kept := newLayer(t, hardConfig(0.8))
	keptLogits := append(append([]float64{}, logits[0:3]...), logits[6:9]...)
	want, err := kept.Loss(tensor.New(tensor.Shape{2, 3}, keptLogits), tensor.New(tensor.Shape{2}, []float64{1, 0}))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	grad, err := l.Gradient(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, grad.Data()[3:6])
	assert.Equal(t, []float64{0, 0, 0}, grad.Data()[9:12])

	keptGrad, err := kept.Gradient(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, keptGrad.Data()[0:3], grad.Data()[0:3], 1e-12)
	assert.InDeltaSlice(t, keptGrad.Data()[3:6], grad.Data()[6:9], 1e-12)
}

func TestBootstrapLoss_AllIgnored(t *testing.T) {
	pred := tensor.New(tensor.Shape{2, 3}, []float64{1, 2, 3, 3, 2, 1})
	labels := tensor.New(tensor.Shape{2}, []float64{-1, -1})

	core, logs := observer.New(zapcore.WarnLevel)
	cfg := softConfig(0.9).WithIgnoreLabel(-1)
	l, err := loss.New[float64](cfg, nil, loss.WithLogger(zap.New(core)))
	require.NoError(t, err)

	got, err := l.Loss(pred, labels)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 1, logs.Len(), "an all-ignored batch is reported")

	grad, err := l.Gradient(1)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), grad.Data())

	cfg.Normalize = false
	l = newLayer(t, cfg)
	got, err = l.Loss(pred, labels)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestBootstrapLoss_GradientMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	shape := tensor.Shape{2, 4, 3}
	logits := randomLogits(rng, shape.NumElements())
	labels := tensor.New(tensor.Shape{2, 3}, []float64{0, 1, 2, 3, 0, 1})

	for _, normalize := range []bool{true, false} {
		cfg := hardConfig(0.7)
		cfg.Normalize = normalize
		l := newLayer(t, cfg)
		pred := tensor.New(shape, logits)

		numeric := numericalGradient(pred.Data(), func() float64 {
			v, err := l.Loss(pred, labels)
			require.NoError(t, err)
			return v
		})

		_, err := l.Loss(pred, labels)
		require.NoError(t, err)
		grad, err := l.Gradient(1)
		require.NoError(t, err)
		assert.InDeltaSlice(t, numeric, grad.Data(), 1e-6, "normalize=%v", normalize)
	}
}

func TestBootstrapLoss_LossWeightScalesGradient(t *testing.T) {
	l := newLayer(t, softConfig(0.6))
	pred := tensor.New(tensor.Shape{2, 3}, []float64{0.1, 0.2, 0.3, 1, -1, 0})
	labels := tensor.New(tensor.Shape{2}, []float64{2, 0})
	_, err := l.Loss(pred, labels)
	require.NoError(t, err)

	g1, err := l.Gradient(1)
	require.NoError(t, err)
	g2, err := l.Gradient(2.5)
	require.NoError(t, err)

	want := g1.Clone().Data()
	floats.Scale(2.5, want)
	assert.InDeltaSlice(t, want, g2.Data(), 1e-12)
}

func TestBootstrapLoss_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	shape := tensor.Shape{40, 6, 7}
	logits := randomLogits(rng, shape.NumElements())
	labels := make([]float64, 40*7)
	for i := range labels {
		labels[i] = float64(rng.IntN(6))
	}
	labels[3] = 99

	run := func(par parallel.Config) (float64, []float64) {
		cfg := softConfig(0.8).WithIgnoreLabel(99)
		l, err := loss.New[float64](cfg, nil, loss.WithParallel(par))
		require.NoError(t, err)
		v, err := l.Loss(tensor.New(shape, logits), tensor.New(tensor.Shape{40, 7}, labels))
		require.NoError(t, err)
		g, err := l.Gradient(1)
		require.NoError(t, err)
		return v, g.Data()
	}

	seqLoss, seqGrad := run(parallel.Sequential())
	parLoss, parGrad := run(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 3})
	assert.Equal(t, seqLoss, parLoss)
	assert.Equal(t, seqGrad, parGrad)
}

func TestBootstrapLoss_ClassAxis(t *testing.T) {
	// (N, H, C) with the class axis last must agree with (N*H, C) on axis 1.
	rng := rand.New(rand.NewPCG(13, 14))
	logits := randomLogits(rng, 2*3*4)
	labels := []float64{0, 1, 2, 3, 2, 1}

	cfg := hardConfig(0.75)
	cfg.Axis = -1
	last := newLayer(t, cfg)
	got, err := last.Loss(tensor.New(tensor.Shape{2, 3, 4}, logits), tensor.New(tensor.Shape{2, 3}, labels))
	require.NoError(t, err)

	flat := newLayer(t, hardConfig(0.75))
	want, err := flat.Loss(tensor.New(tensor.Shape{6, 4}, logits), tensor.New(tensor.Shape{6}, labels))
	require.NoError(t, err)

	// Both layouts have six outer positions and one inner position.
	assert.InDelta(t, want, got, 1e-12)
}

func TestBootstrapLoss_Float32(t *testing.T) {
	cfg := hardConfig(0.5)
	l, err := loss.New[float32](cfg, nil)
	require.NoError(t, err)

	got, err := l.Loss(
		tensor.New(tensor.Shape{1, 3}, []float32{2, 1, 0}),
		tensor.New(tensor.Shape{1}, []float32{2}),
	)
	require.NoError(t, err)

	p := softmaxRef([]float64{2, 1, 0})
	assert.InDelta(t, -0.5*math.Log(p[0])-0.5*math.Log(p[2]), float64(got), 1e-5)
}

func TestBootstrapLoss_ZeroProbabilityIsFloored(t *testing.T) {
	l := newLayer(t, hardConfig(1))
	got, err := l.Loss(
		tensor.New(tensor.Shape{1, 2}, []float64{0, -1e4}),
		tensor.New(tensor.Shape{1}, []float64{1}),
	)
	require.NoError(t, err)
	assert.False(t, math.IsInf(got, 0))
	assert.InDelta(t, -math.Log(0x1p-126), got, 1e-9)
}

func TestBootstrapLoss_ExposeProb(t *testing.T) {
	cfg := softConfig(0.9)
	cfg.ExposeProb = true
	l := newLayer(t, cfg)

	shape := tensor.Shape{1, 3}
	bottomShapes := []tensor.Shape{shape, {1}}
	require.NoError(t, l.SetUp(bottomShapes))
	tops, err := l.Reshape(bottomShapes)
	require.NoError(t, err)
	if diff := cmp.Diff([]tensor.Shape{{1}, {1, 3}}, tops); diff != "" {
		t.Errorf("top shapes mismatch (-want +got):\n%s", diff)
	}

	out, err := l.Forward([]*tensor.Dense[float64]{
		tensor.New(shape, []float64{2, 1, 0}),
		tensor.New(tensor.Shape{1}, []float64{0}),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDeltaSlice(t, softmaxRef([]float64{2, 1, 0}), out[1].Data(), 1e-12)

	out[1].Data()[0] = 42
	assert.NotEqual(t, 42.0, l.Prob().Data()[0], "exposed probabilities are a copy")
}

func TestBootstrapLoss_Lifecycle(t *testing.T) {
	shapes := []tensor.Shape{{2, 3}, {2}}
	bottom := []*tensor.Dense[float64]{
		tensor.New(tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
		tensor.New(tensor.Shape{2}, []float64{0, 1}),
	}
	top := []*tensor.Dense[float64]{tensor.New(tensor.Shape{1}, []float64{1})}

	l := newLayer(t, softConfig(0.9))
	assert.Equal(t, loss.Unconfigured, l.State())

	_, err := l.Reshape(shapes)
	assert.ErrorIs(t, err, loss.ErrLifecycle)

	require.NoError(t, l.SetUp(shapes))
	assert.Equal(t, loss.Configured, l.State())
	assert.ErrorIs(t, l.SetUp(shapes), loss.ErrLifecycle)

	_, err = l.Forward(bottom)
	assert.ErrorIs(t, err, loss.ErrLifecycle, "Forward before Reshape")

	_, err = l.Reshape(shapes)
	require.NoError(t, err)
	assert.Equal(t, loss.ShapeBound, l.State())

	_, err = l.Backward(top, []bool{true, false}, bottom)
	assert.ErrorIs(t, err, loss.ErrLifecycle, "Backward before Forward")

	_, err = l.Forward(bottom)
	require.NoError(t, err)
	assert.Equal(t, loss.Evaluated, l.State())

	diffs, err := l.Backward(top, []bool{true, false}, bottom)
	require.NoError(t, err)
	assert.Equal(t, loss.GradientReady, l.State())
	require.Len(t, diffs, 2)
	assert.NotNil(t, diffs[0])
	assert.Nil(t, diffs[1])

	diffs, err = l.Backward(top, []bool{false, false}, bottom)
	require.NoError(t, err)
	assert.Nil(t, diffs[0])

	// A different shape needs a Reshape first.
	wider := []*tensor.Dense[float64]{
		tensor.Zeros[float64](tensor.Shape{3, 3}),
		tensor.Zeros[float64](tensor.Shape{3}),
	}
	_, err = l.Forward(wider)
	assert.ErrorIs(t, err, loss.ErrLifecycle)

	_, err = l.Reshape([]tensor.Shape{{3, 3}, {3}})
	require.NoError(t, err)
	assert.Nil(t, l.Prob(), "reshape invalidates the caches")
	_, err = l.Forward(wider)
	assert.NoError(t, err)
}

func TestBootstrapLoss_ConfigurationErrors(t *testing.T) {
	t.Run("beta out of range", func(t *testing.T) {
		for _, beta := range []float64{-0.1, 1.5, math.NaN()} {
			_, err := loss.New[float64](softConfig(beta), nil)
			assert.ErrorIs(t, err, loss.ErrConfig, "beta=%v", beta)
		}
	})

	t.Run("label count mismatch", func(t *testing.T) {
		l := newLayer(t, softConfig(0.9))
		shapes := []tensor.Shape{{2, 3, 4}, {2, 3}}
		require.NoError(t, l.SetUp(shapes))
		_, err := l.Reshape(shapes)
		assert.ErrorIs(t, err, loss.ErrConfig)
		assert.Contains(t, err.Error(), "must be 8")
	})

	t.Run("axis out of range", func(t *testing.T) {
		cfg := softConfig(0.9)
		cfg.Axis = 3
		l := newLayer(t, cfg)
		err := l.SetUp([]tensor.Shape{{2, 3}, {2}})
		assert.ErrorIs(t, err, loss.ErrConfig)
		assert.ErrorIs(t, err, tensor.ErrInvalidShape)
	})

	t.Run("wrong bottom count", func(t *testing.T) {
		l := newLayer(t, softConfig(0.9))
		assert.ErrorIs(t, l.SetUp([]tensor.Shape{{2, 3}}), loss.ErrConfig)
	})

	t.Run("label out of range", func(t *testing.T) {
		l := newLayer(t, softConfig(0.9))
		_, err := l.Loss(tensor.New(tensor.Shape{1, 3}, []float64{1, 2, 3}), tensor.New(tensor.Shape{1}, []float64{3}))
		assert.ErrorIs(t, err, loss.ErrConfig)
	})

	t.Run("backprop to labels", func(t *testing.T) {
		l := newLayer(t, softConfig(0.9))
		pred := tensor.New(tensor.Shape{1, 3}, []float64{1, 2, 3})
		labels := tensor.New(tensor.Shape{1}, []float64{0})
		_, err := l.Loss(pred, labels)
		require.NoError(t, err)

		top := []*tensor.Dense[float64]{tensor.New(tensor.Shape{1}, []float64{1})}
		_, err = l.Backward(top, []bool{true, true}, []*tensor.Dense[float64]{pred, labels})
		assert.ErrorIs(t, err, loss.ErrLabelBackprop)
		assert.ErrorIs(t, err, loss.ErrConfig)
	})

	t.Run("gradient before loss", func(t *testing.T) {
		l := newLayer(t, softConfig(0.9))
		_, err := l.Gradient(1)
		assert.ErrorIs(t, err, loss.ErrLifecycle)
	})

	t.Run("missing softmax", func(t *testing.T) {
		l, err := loss.New[float64](softConfig(0.9), layer.NewRegistry[float64]())
		require.NoError(t, err)
		err = l.SetUp([]tensor.Shape{{1, 3}, {1}})
		assert.ErrorIs(t, err, loss.ErrConfig)
		assert.ErrorIs(t, err, layer.ErrUnknownType)
	})
}
