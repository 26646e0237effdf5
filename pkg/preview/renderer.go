package preview

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/compositor"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Options configures a [Renderer].
type Options struct {
	Logger *log.Logger
	// OnChange receives every non-empty batch of changes, including those
	// caused by images arriving during [Renderer.Load]. It is called
	// without the renderer's lock held.
	OnChange func([]Change)
}

type imageState struct {
	size geometry.Size
	err  error
}

// Renderer maintains the preview of one scene. All methods are safe for
// concurrent use; each event recomputes the fit and every layer box from
// scratch and returns only the elements whose box changed.
type Renderer struct {
	mu       sync.Mutex
	scene    *scene.Scene
	viewport geometry.Size
	state    State
	fit      geometry.FitBox

	bgSize geometry.Size
	bgDone bool

	images   map[string]imageState
	elements map[string]Element
	order    []string

	sup      compositor.Supervisor
	logger   *log.Logger
	onChange func([]Change)
}

// New creates a renderer for s in the Measuring state.
func New(s *scene.Scene, opts Options) *Renderer {
	if s == nil {
		s = &scene.Scene{}
	}
	r := &Renderer{
		scene:    s,
		images:   make(map[string]imageState),
		elements: make(map[string]Element),
		logger:   opts.Logger,
		onChange: opts.OnChange,
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// State returns the current fit state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Fit returns the current fit box.
func (r *Renderer) Fit() geometry.FitBox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fit
}

// Scene returns the scene being previewed.
func (r *Renderer) Scene() *scene.Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scene
}

// Elements returns the current elements in draw order.
func (r *Renderer) Elements() []Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Element, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.elements[id])
	}
	return out
}

// Resize handles a container size change.
func (r *Renderer) Resize(width, height float64) []Change {
	return r.update(func() {
		r.viewport = geometry.Size{W: width, H: height}
	})
}

// BackgroundDecoded records the background's natural size.
func (r *Renderer) BackgroundDecoded(natural geometry.Size) []Change {
	return r.update(func() {
		r.bgSize, r.bgDone = natural, true
	})
}

// BackgroundFailed records that the background cannot be shown. The fit box
// falls back to the full container.
func (r *Renderer) BackgroundFailed(err error) []Change {
	return r.update(func() {
		r.bgSize, r.bgDone = geometry.Size{}, true
		r.logger.Warn("background failed, fitting to container", "err", err)
	})
}

// ImageSettled records the outcome of a layer image load. Loaded images
// become visible; failed ones are removed.
func (r *Renderer) ImageSettled(res acquire.Result) []Change {
	return r.update(func() { r.settle(res) })
}

// SetScene replaces the scene, keeping known image states.
func (r *Renderer) SetScene(s *scene.Scene) []Change {
	if s == nil {
		s = &scene.Scene{}
	}
	return r.update(func() {
		if s.BackgroundURL() != r.scene.BackgroundURL() {
			r.bgSize, r.bgDone = geometry.Size{}, false
		}
		r.scene = s
	})
}

// Select switches the selected candidate image of a layer.
func (r *Renderer) Select(layerID, imageID string) []Change {
	return r.update(func() {
		r.scene = r.scene.WithSelection(layerID, imageID)
	})
}

// Load acquires every image the current scene needs and feeds the results
// into the renderer as they arrive. Starting another Load supersedes this
// one: results of the older pass are discarded and it returns
// [compositor.ErrSuperseded].
func (r *Renderer) Load(ctx context.Context, loader compositor.Loader) error {
	ticket := r.sup.Begin(ctx)

	r.mu.Lock()
	urls := r.scene.URLs()
	r.mu.Unlock()

	loader.LoadAll(ticket.Ctx, urls, func(res acquire.Result) {
		r.mu.Lock()
		if !r.sup.Current(ticket) {
			r.mu.Unlock()
			return
		}
		changes := r.apply(func() { r.settle(res) })
		r.mu.Unlock()
		r.emit(changes)
	})
	return r.sup.Commit(ticket)
}

// Close cancels any in-flight Load.
func (r *Renderer) Close() {
	r.sup.Stop()
}

func (r *Renderer) settle(res acquire.Result) {
	st := imageState{err: res.Err}
	if res.OK() {
		st.size = res.Image.Size
	} else if st.err == nil {
		st.err = &acquire.ImageLoadError{URL: res.URL}
	}
	r.images[res.URL] = st

	if res.URL == r.scene.BackgroundURL() {
		r.bgDone = true
		r.bgSize = st.size
		if st.err != nil {
			r.logger.Warn("background failed, fitting to container", "url", res.URL, "err", st.err)
		}
	}
}

func (r *Renderer) update(mutate func()) []Change {
	r.mu.Lock()
	changes := r.apply(mutate)
	r.mu.Unlock()
	r.emit(changes)
	return changes
}

func (r *Renderer) emit(changes []Change) {
	if len(changes) > 0 && r.onChange != nil {
		r.onChange(changes)
	}
}

// apply runs mutate and recomputes every element. Callers hold r.mu.
func (r *Renderer) apply(mutate func()) []Change {
	mutate()

	hasBackground := r.scene.BackgroundURL() != ""
	prev := r.state
	switch {
	case !r.viewport.Known():
		r.state = Measuring
	case hasBackground && !r.bgDone:
		r.state = FitPending
	default:
		r.state = Fitted
	}
	if prev != r.state {
		r.logger.Debug("preview state", "from", prev, "to", r.state)
	}

	var bg geometry.Size
	if hasBackground && r.bgDone {
		bg = r.bgSize
	}
	plan := compositor.PlanScene(r.scene, r.viewport, bg)
	r.fit = plan.Fit

	next := make(map[string]Element, len(plan.Instructions))
	order := make([]string, 0, len(plan.Instructions))
	for _, in := range plan.Instructions {
		st, settled := r.images[in.URL]
		if settled && st.err != nil {
			continue
		}
		el := Element{
			LayerID: in.LayerID,
			ImageID: in.ImageID,
			URL:     in.URL,
			Loaded:  settled,
			Style: Style{
				Left:     in.Dest.X,
				Top:      in.Dest.Y,
				Width:    in.Dest.W,
				Height:   in.Dest.H,
				Rotation: in.Rotation,
				Z:        in.Z,
				Visible:  settled,
			},
		}
		next[in.LayerID] = el
		order = append(order, in.LayerID)
	}

	var changes []Change
	for _, id := range order {
		el := next[id]
		old, existed := r.elements[id]
		switch {
		case !existed:
			changes = append(changes, Change{Kind: ChangeAdd, Element: el})
		case old.URL != el.URL || !styleEqual(old.Style, el.Style):
			changes = append(changes, Change{Kind: ChangeUpdate, Element: el})
		}
	}
	for _, id := range r.order {
		if _, ok := next[id]; !ok {
			changes = append(changes, Change{Kind: ChangeRemove, Element: r.elements[id]})
		}
	}
	r.elements, r.order = next, order
	return changes
}
