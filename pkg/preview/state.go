// Package preview keeps an interactive view of a scene in sync with its
// container.
//
// A [Renderer] never touches pixels. It tracks the container size and the
// background's natural size, asks the compositor for placement, and reports
// the absolutely positioned element boxes that changed as [Change] values.
// A host (a DOM bridge, a terminal UI, a test) applies them.
//
// The fit follows a small state machine with no terminal state:
//
//	Measuring  -- resize with area --------------------> FitPending | Fitted
//	FitPending -- background decoded or failed --------> Fitted
//	Fitted     -- resize to zero ----------------------> Measuring
//
// FitPending means the container is known but the background is still
// decoding; layers are placed against the full container meanwhile.
package preview

// State is the fit state of a [Renderer].
type State int

const (
	// Measuring waits for a container size with area.
	Measuring State = iota
	// FitPending has a container size but not the background's natural size.
	FitPending
	// Fitted has everything needed for the final fit box.
	Fitted
)

func (s State) String() string {
	switch s {
	case Measuring:
		return "measuring"
	case FitPending:
		return "fit-pending"
	case Fitted:
		return "fitted"
	}
	return "unknown"
}
