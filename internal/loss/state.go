package loss

// State is the position of a layer in its lifecycle.
type State int

// Lifecycle states, in the order the host drives a layer through them.
const (
	Unconfigured  State = iota // constructed, SetUp not yet called
	Configured                 // SetUp succeeded
	ShapeBound                 // Reshape succeeded; caches are stale
	Evaluated                  // Forward filled the probability and label caches
	GradientReady              // Backward produced a gradient
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case Configured:
		return "Configured"
	case ShapeBound:
		return "ShapeBound"
	case Evaluated:
		return "Evaluated"
	case GradientReady:
		return "GradientReady"
	default:
		return "Unknown"
	}
}
