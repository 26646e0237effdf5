package compositor

import (
	"context"
	"errors"
	"image"
	"reflect"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/layerstack/pkg/acquire"
	errs "github.com/matzehuels/layerstack/pkg/errors"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/scene"
)

func tf(x, y, w, h, rot float64) *geometry.Transform {
	return &geometry.Transform{X: x, Y: y, Width: w, Height: h, Rotation: rot}
}

func layer(id string, z int, url string, t *geometry.Transform) scene.Layer {
	return scene.Layer{
		ID:      id,
		Name:    "Layer " + id,
		Z:       z,
		Visible: true,
		Images:  []scene.LayerImage{{ID: id + "-img", URL: url, Transform: t}},
	}
}

func layerIDs(ins []Instruction) []string {
	ids := make([]string, len(ins))
	for i, in := range ins {
		ids[i] = in.LayerID
	}
	return ids
}

func TestPlanSceneExample(t *testing.T) {
	s := &scene.Scene{Layers: []scene.Layer{layer("sofa", 0, "sofa.png", tf(10, 10, 50, 50, 0))}}
	p := PlanScene(s, geometry.Size{W: 600, H: 600}, geometry.Size{W: 1200, H: 1000})

	wantFit := geometry.FitBox{Left: 0, Top: 50, Width: 600, Height: 500}
	if p.Fit != wantFit {
		t.Errorf("Fit = %+v, want %+v", p.Fit, wantFit)
	}
	if len(p.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(p.Instructions))
	}
	want := geometry.Rect{X: 60, Y: 100, W: 300, H: 250}
	if got := p.Instructions[0].Dest; got != want {
		t.Errorf("Dest = %+v, want %+v", got, want)
	}
}

func TestPlanSceneIdempotent(t *testing.T) {
	s := &scene.Scene{
		Background: &scene.Background{URL: "bg.png"},
		Layers: []scene.Layer{
			layer("a", 2, "a.png", tf(5, 5, 40, 30, 15)),
			layer("b", 1, "b.png", nil),
			layer("c", 2, "c.png", tf(120, -3, 0, 0, 0)),
		},
	}
	vp, bg := geometry.Size{W: 1080, H: 1920}, geometry.Size{W: 1600, H: 900}
	first := PlanScene(s, vp, bg)
	second := PlanScene(s, vp, bg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("PlanScene not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestPlanSceneZOrderStable(t *testing.T) {
	s := &scene.Scene{Layers: []scene.Layer{
		layer("0", 1, "0.png", nil),
		layer("1", 1, "1.png", nil),
		layer("2", 0, "2.png", nil),
	}}
	p := PlanScene(s, geometry.Size{W: 100, H: 100}, geometry.Size{})
	if got, want := layerIDs(p.Instructions), []string{"2", "0", "1"}; !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for _, in := range p.Instructions {
		if in.LayerID != s.Layers[in.Index].ID {
			t.Errorf("instruction %s has Index %d pointing at %s", in.LayerID, in.Index, s.Layers[in.Index].ID)
		}
	}
}

func TestPlanSceneEdgeCases(t *testing.T) {
	full := &scene.Scene{Layers: []scene.Layer{layer("a", 0, "a.png", nil)}}

	t.Run("zero viewport", func(t *testing.T) {
		p := PlanScene(full, geometry.Size{}, geometry.Size{W: 10, H: 10})
		if len(p.Instructions) != 0 || !p.Fit.Empty() {
			t.Errorf("zero viewport should produce an empty plan, got %+v", p)
		}
	})

	t.Run("zero layers", func(t *testing.T) {
		p := PlanScene(&scene.Scene{Background: &scene.Background{URL: "bg.png"}}, geometry.Size{W: 100, H: 50}, geometry.Size{W: 10, H: 10})
		if len(p.Instructions) != 0 {
			t.Errorf("got %d instructions, want 0", len(p.Instructions))
		}
		if want := (geometry.FitBox{Left: 25, Top: 0, Width: 50, Height: 50}); p.Fit != want {
			t.Errorf("Fit = %+v, want %+v", p.Fit, want)
		}
	})

	t.Run("no background fills viewport", func(t *testing.T) {
		p := PlanScene(full, geometry.Size{W: 300, H: 200}, geometry.Size{})
		if want := (geometry.Rect{W: 300, H: 200}); p.Instructions[0].Dest != want {
			t.Errorf("Dest = %+v, want %+v", p.Instructions[0].Dest, want)
		}
	})

	t.Run("hidden and empty layers", func(t *testing.T) {
		hidden := layer("hidden", 0, "h.png", nil)
		hidden.Visible = false
		empty := scene.Layer{ID: "empty", Visible: true}
		s := &scene.Scene{Layers: []scene.Layer{hidden, empty, layer("shown", 0, "s.png", nil)}}
		p := PlanScene(s, geometry.Size{W: 10, H: 10}, geometry.Size{})
		if got := layerIDs(p.Instructions); !slices.Equal(got, []string{"shown"}) {
			t.Errorf("instructions = %v, want [shown]", got)
		}
	})

	t.Run("selection picks candidate", func(t *testing.T) {
		l := layer("a", 0, "first.png", nil)
		l.Images = append(l.Images, scene.LayerImage{ID: "second", URL: "second.png", Transform: tf(0, 0, 50, 50, 90)})
		s := (&scene.Scene{Layers: []scene.Layer{l}}).WithSelection("a", "second")
		p := PlanScene(s, geometry.Size{W: 100, H: 100}, geometry.Size{})
		in := p.Instructions[0]
		if in.ImageID != "second" || in.URL != "second.png" {
			t.Errorf("selected %s (%s), want second", in.ImageID, in.URL)
		}
		if want := (geometry.Rect{W: 50, H: 50}); in.Dest != want {
			t.Errorf("Dest = %+v, want %+v", in.Dest, want)
		}
		if in.Rotation != geometry.Radians(90) {
			t.Errorf("Rotation = %v, want pi/2", in.Rotation)
		}
	})
}

func TestPlanSceneClampWarnings(t *testing.T) {
	s := &scene.Scene{Layers: []scene.Layer{
		layer("ok", 0, "ok.png", tf(10, 10, 20, 20, 0)),
		layer("wide", 0, "wide.png", tf(80, 0, 50, 150, 0)),
	}}
	p := PlanScene(s, geometry.Size{W: 200, H: 100}, geometry.Size{})
	if len(p.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(p.Warnings))
	}
	w := p.Warnings[0]
	if w.LayerID != "wide" {
		t.Errorf("warning names %q, want wide", w.LayerID)
	}
	if !errs.Is(w, errs.ErrCodeInvalidTransform) || !errs.Recoverable(w) {
		t.Error("clamp warning should carry the recoverable INVALID_TRANSFORM code")
	}
	fit := p.Fit.Rect()
	for _, in := range p.Instructions {
		if !fit.ContainsRect(in.Dest, 1e-9) {
			t.Errorf("%s: %+v escapes fit box %+v", in.LayerID, in.Dest, fit)
		}
	}
}

// fakeLoader serves fixed images; URLs in fail are reported as load errors.
type fakeLoader struct {
	sizes map[string]geometry.Size
	fail  map[string]bool
	calls atomic.Int32
}

func (f *fakeLoader) LoadAll(ctx context.Context, urls []string, onSettled func(acquire.Result)) acquire.Results {
	f.calls.Add(1)
	out := make(acquire.Results, len(urls))
	for _, u := range urls {
		var r acquire.Result
		if f.fail[u] {
			r = acquire.Result{URL: u, Err: &acquire.ImageLoadError{URL: u, Err: errs.New(errs.ErrCodeImageLoad, "unreachable")}}
		} else {
			sz, ok := f.sizes[u]
			if !ok {
				sz = geometry.Size{W: 10, H: 10}
			}
			img := image.NewNRGBA(image.Rect(0, 0, int(sz.W), int(sz.H)))
			r = acquire.Result{URL: u, Image: &acquire.Image{URL: u, Image: img, Size: sz}}
		}
		out[u] = r
		if onSettled != nil {
			onSettled(r)
		}
	}
	return out
}

func TestComposeFailureIsolation(t *testing.T) {
	s := &scene.Scene{Layers: []scene.Layer{
		layer("one", 0, "one.png", nil),
		layer("two", 1, "two.png", nil),
		layer("three", 2, "three.png", nil),
	}}
	loader := &fakeLoader{fail: map[string]bool{"two.png": true}}
	c := New(Options{Loader: loader})

	var settled int
	pass, err := c.Compose(context.Background(), s, geometry.Size{W: 100, H: 100}, func(acquire.Result) { settled++ })
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := layerIDs(pass.Instructions); !slices.Equal(got, []string{"one", "three"}) {
		t.Errorf("instructions = %v, want [one three]", got)
	}
	if len(pass.Skipped) != 1 || pass.Skipped[0].LayerID != "two" {
		t.Fatalf("Skipped = %+v, want layer two", pass.Skipped)
	}
	var loadErr *acquire.ImageLoadError
	if !errors.As(pass.Skipped[0], &loadErr) {
		t.Errorf("skip reason should unwrap to ImageLoadError: %v", pass.Skipped[0].Err)
	}
	if settled != 3 {
		t.Errorf("onSettled called %d times, want 3", settled)
	}
	for _, in := range pass.Instructions {
		if in.Image == nil || !in.Natural.Known() {
			t.Errorf("%s: instruction missing image handle", in.LayerID)
		}
	}
	if pass.ID == "" {
		t.Error("pass should have an ID")
	}
}

func TestComposeBackground(t *testing.T) {
	s := &scene.Scene{
		Background: &scene.Background{URL: "bg.png"},
		Layers:     []scene.Layer{layer("a", 0, "a.png", tf(10, 10, 50, 50, 0))},
	}
	vp := geometry.Size{W: 600, H: 600}

	t.Run("decoded", func(t *testing.T) {
		loader := &fakeLoader{sizes: map[string]geometry.Size{"bg.png": {W: 1200, H: 1000}}}
		pass, err := New(Options{Loader: loader}).Compose(context.Background(), s, vp, nil)
		if err != nil {
			t.Fatal(err)
		}
		if pass.Background == nil || pass.BackgroundErr != nil {
			t.Fatalf("background should load: %v", pass.BackgroundErr)
		}
		if want := (geometry.Rect{X: 60, Y: 100, W: 300, H: 250}); pass.Instructions[0].Dest != want {
			t.Errorf("Dest = %+v, want %+v", pass.Instructions[0].Dest, want)
		}
	})

	t.Run("failed", func(t *testing.T) {
		loader := &fakeLoader{fail: map[string]bool{"bg.png": true}}
		pass, err := New(Options{Loader: loader}).Compose(context.Background(), s, vp, nil)
		if err != nil {
			t.Fatal(err)
		}
		if pass.Background != nil || pass.BackgroundErr == nil {
			t.Error("failed background should be reported, not drawn")
		}
		if want := (geometry.FitBox{Width: 600, Height: 600}); pass.Fit != want {
			t.Errorf("Fit = %+v, want full viewport", pass.Fit)
		}
		if len(pass.Instructions) != 1 {
			t.Errorf("layers should still be drawn, got %d", len(pass.Instructions))
		}
	})
}

func TestComposeZeroViewportShortCircuits(t *testing.T) {
	loader := &fakeLoader{}
	s := &scene.Scene{Layers: []scene.Layer{layer("a", 0, "a.png", nil)}}
	pass, err := New(Options{Loader: loader}).Compose(context.Background(), s, geometry.Size{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pass.Instructions) != 0 {
		t.Errorf("got %d instructions, want 0", len(pass.Instructions))
	}
	if loader.calls.Load() != 0 {
		t.Error("zero viewport should not load images")
	}
}

func TestComposeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scene.Scene{Layers: []scene.Layer{layer("a", 0, "a.png", nil)}}
	_, err := New(Options{Loader: &fakeLoader{}}).Compose(ctx, s, geometry.Size{W: 10, H: 10}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSupervisor(t *testing.T) {
	var sup Supervisor
	a := sup.Begin(context.Background())
	b := sup.Begin(context.Background())

	if a.Ctx.Err() == nil {
		t.Error("beginning a new pass should cancel the previous one")
	}
	if b.Ctx.Err() != nil {
		t.Error("current pass should not be cancelled")
	}
	if sup.Current(a) || !sup.Current(b) {
		t.Error("Current should only report the latest ticket")
	}
	if PassID(b.Ctx) != b.ID {
		t.Errorf("ticket context carries %q, want %q", PassID(b.Ctx), b.ID)
	}

	if err := sup.Commit(a); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Commit(stale) = %v, want ErrSuperseded", err)
	}
	if !errs.Is(ErrSuperseded, errs.ErrCodeSuperseded) {
		t.Error("ErrSuperseded should carry the SUPERSEDED code")
	}
	if err := sup.Commit(b); err != nil {
		t.Errorf("Commit(current) = %v, want nil", err)
	}
	if err := sup.Commit(b); !errors.Is(err, ErrSuperseded) {
		t.Error("a committed ticket cannot commit twice")
	}
}

func TestComposeUsesTicketPassID(t *testing.T) {
	var sup Supervisor
	ticket := sup.Begin(context.Background())
	s := &scene.Scene{Layers: []scene.Layer{layer("a", 0, "a.png", nil)}}
	pass, err := New(Options{Loader: &fakeLoader{}}).Compose(ticket.Ctx, s, geometry.Size{W: 10, H: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pass.ID != ticket.ID {
		t.Errorf("pass ID = %q, want ticket ID %q", pass.ID, ticket.ID)
	}
	if err := sup.Commit(ticket); err != nil {
		t.Errorf("Commit: %v", err)
	}
}
