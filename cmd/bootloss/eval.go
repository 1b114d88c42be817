package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/bootloss/internal/config"
	"github.com/born-ml/bootloss/internal/loss"
	"github.com/born-ml/bootloss/internal/tensor"
)

// Result is what eval prints.
type Result struct {
	Name            string    `yaml:"name,omitempty"`
	Type            string    `yaml:"type"`
	DType           string    `yaml:"dtype"`
	Loss            float64   `yaml:"loss"`
	PredictedLabels []int32   `yaml:"predicted_labels"`
	Probabilities   []float64 `yaml:"probabilities,omitempty"`
	Gradient        []float64 `yaml:"gradient,omitempty"`
}

func newEvalCmd() *cobra.Command {
	var (
		dtype    string
		withGrad bool
	)
	cmd := &cobra.Command{
		Use:   "eval CASE.yaml",
		Short: "Run the loss layer on a case file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadCase(args[0])
			if err != nil {
				return err
			}
			if dtype != "" {
				c.Layer.DType = dtype
				if err := c.Validate(); err != nil {
					return err
				}
			}

			var res *Result
			switch c.Layer.DType {
			case "float64":
				res, err = evaluate[float64](c, withGrad, logger)
			default:
				res, err = evaluate[float32](c, withGrad, logger)
			}
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&dtype, "dtype", "", "override the element type (float32 or float64)")
	cmd.Flags().BoolVar(&withGrad, "grad", false, "also run Backward and print the prediction gradient")
	return cmd
}

// evaluate drives a layer built from the default registry through its
// lifecycle on the case tensors.
func evaluate[T tensor.Float](c *config.Case, withGrad bool, log *zap.Logger) (*Result, error) {
	cfg, err := c.Layer.LossConfig()
	if err != nil {
		return nil, err
	}

	reg := loss.NewRegistry[T](loss.WithLogger(log))
	l, err := reg.Layer(c.Layer.Type, cfg)
	if err != nil {
		return nil, err
	}

	pred := tensor.New(tensor.Shape(c.Shape), convert[T](c.Predictions))
	labels := tensor.New(c.LabelShapeOrDefault(), convert[T](c.Labels))
	bottomShapes := []tensor.Shape{pred.Shape(), labels.Shape()}
	bottom := []*tensor.Dense[T]{pred, labels}

	if err := l.SetUp(bottomShapes); err != nil {
		return nil, err
	}
	if _, err := l.Reshape(bottomShapes); err != nil {
		return nil, err
	}
	top, err := l.Forward(bottom)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Name:  c.Layer.Name,
		Type:  l.Type(),
		DType: tensor.DTypeName[T](),
		Loss:  float64(top[0].Data()[0]),
	}
	if len(top) > 1 {
		res.Probabilities = convert[float64](top[1].Data())
	}
	if bl, ok := l.(*loss.BootstrapLoss[T]); ok {
		res.PredictedLabels = bl.PredictedLabels().Data()
	}

	if withGrad {
		topDiff := []*tensor.Dense[T]{tensor.New(tensor.Shape{1}, []T{T(c.TopDiff)})}
		diffs, err := l.Backward(topDiff, []bool{true, false}, bottom)
		if err != nil {
			return nil, fmt.Errorf("backward: %w", err)
		}
		res.Gradient = convert[float64](diffs[0].Data())
	}

	log.Debug("case evaluated",
		zap.String("dtype", res.DType),
		zap.Float64("loss", res.Loss),
		zap.Bool("gradient", withGrad),
	)
	return res, nil
}

func convert[To, From tensor.Float](in []From) []To {
	out := make([]To, len(in))
	for i, v := range in {
		out[i] = To(v)
	}
	return out
}
