package loss

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports a configuration the layer cannot run with. It is
	// fatal for the training step that hit it.
	ErrConfig = errors.New("bootstrap loss: configuration error")

	// ErrLifecycle reports a call made out of order, such as Forward before
	// Reshape or Backward before Forward.
	ErrLifecycle = errors.New("bootstrap loss: lifecycle violation")

	// ErrLabelBackprop is returned when Backward is asked to propagate into
	// the label input. It wraps ErrConfig.
	ErrLabelBackprop = fmt.Errorf("%w: cannot backpropagate to label inputs", ErrConfig)
)
