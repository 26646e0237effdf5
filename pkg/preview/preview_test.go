package preview

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/compositor"
	"github.com/matzehuels/layerstack/pkg/export"
	"github.com/matzehuels/layerstack/pkg/geometry"
	"github.com/matzehuels/layerstack/pkg/scene"
)

func tf(x, y, w, h, rot float64) *geometry.Transform {
	return &geometry.Transform{X: x, Y: y, Width: w, Height: h, Rotation: rot}
}

func testScene() *scene.Scene {
	return &scene.Scene{
		Background: &scene.Background{URL: "/bg.png"},
		Layers: []scene.Layer{
			{ID: "sofa", Z: 1, Visible: true, Images: []scene.LayerImage{
				{ID: "grey", URL: "/sofa-grey.png", Transform: tf(10, 10, 50, 50, 0)},
				{ID: "blue", URL: "/sofa-blue.png", Transform: tf(20, 40, 30, 30, 15)},
			}},
			{ID: "lamp", Z: 0, Visible: true, Images: []scene.LayerImage{
				{ID: "brass", URL: "/lamp.png", Transform: tf(70, 5, 20, 60, 0)},
			}},
		},
	}
}

func kinds(changes []Change) map[string]ChangeKind {
	out := make(map[string]ChangeKind, len(changes))
	for _, c := range changes {
		out[c.Element.LayerID] = c.Kind
	}
	return out
}

func TestStateMachine(t *testing.T) {
	r := New(testScene(), Options{})
	if r.State() != Measuring {
		t.Fatalf("initial state = %v, want measuring", r.State())
	}

	r.Resize(600, 600)
	if r.State() != FitPending {
		t.Fatalf("after resize = %v, want fit-pending", r.State())
	}
	if want := (geometry.FitBox{Width: 600, Height: 600}); r.Fit() != want {
		t.Errorf("pending fit = %+v, want full viewport", r.Fit())
	}

	r.BackgroundDecoded(geometry.Size{W: 1200, H: 1000})
	if r.State() != Fitted {
		t.Fatalf("after decode = %v, want fitted", r.State())
	}
	if want := (geometry.FitBox{Top: 50, Width: 600, Height: 500}); r.Fit() != want {
		t.Errorf("fit = %+v, want %+v", r.Fit(), want)
	}

	r.Resize(0, 0)
	if r.State() != Measuring {
		t.Errorf("zero resize = %v, want measuring", r.State())
	}
	if len(r.Elements()) != 0 {
		t.Error("zero viewport should have no elements")
	}

	r.Resize(300, 300)
	if r.State() != Fitted {
		t.Errorf("resize after decode = %v, want fitted", r.State())
	}
}

func TestNoBackgroundFitsImmediately(t *testing.T) {
	s := testScene()
	s.Background = nil
	r := New(s, Options{})
	r.Resize(100, 50)
	if r.State() != Fitted {
		t.Errorf("state = %v, want fitted", r.State())
	}
}

func TestBackgroundFailedFallsBackToViewport(t *testing.T) {
	r := New(testScene(), Options{})
	r.Resize(400, 200)
	r.BackgroundFailed(errors.New("404"))
	if r.State() != Fitted {
		t.Errorf("state = %v, want fitted", r.State())
	}
	if want := (geometry.FitBox{Width: 400, Height: 200}); r.Fit() != want {
		t.Errorf("fit = %+v, want full viewport", r.Fit())
	}
}

func TestOnlyChangedElementsAreEmitted(t *testing.T) {
	r := New(testScene(), Options{})

	changes := r.Resize(600, 600)
	if got := kinds(changes); got["sofa"] != ChangeAdd || got["lamp"] != ChangeAdd || len(got) != 2 {
		t.Fatalf("first resize changes = %v, want two adds", got)
	}

	if changes := r.Resize(600, 600); len(changes) != 0 {
		t.Errorf("identical resize emitted %d changes", len(changes))
	}

	changes = r.ImageSettled(acquire.Result{URL: "/lamp.png", Image: &acquire.Image{Size: geometry.Size{W: 10, H: 30}}})
	if got := kinds(changes); len(got) != 1 || got["lamp"] != ChangeUpdate {
		t.Fatalf("lamp load changes = %v, want one lamp update", got)
	}
	if !changes[0].Element.Style.Visible {
		t.Error("loaded element should become visible")
	}

	changes = r.ImageSettled(acquire.Result{URL: "/sofa-grey.png", Err: errors.New("unreachable")})
	if got := kinds(changes); len(got) != 1 || got["sofa"] != ChangeRemove {
		t.Fatalf("sofa failure changes = %v, want sofa removed", got)
	}

	changes = r.Select("sofa", "blue")
	if got := kinds(changes); len(got) != 1 || got["sofa"] != ChangeAdd {
		t.Fatalf("select changes = %v, want sofa re-added with new candidate", got)
	}
	if changes[0].Element.ImageID != "blue" {
		t.Errorf("selected image = %q, want blue", changes[0].Element.ImageID)
	}
}

func TestElementsInZOrder(t *testing.T) {
	r := New(testScene(), Options{})
	r.Resize(100, 100)
	els := r.Elements()
	if len(els) != 2 || els[0].LayerID != "lamp" || els[1].LayerID != "sofa" {
		t.Errorf("elements = %+v, want lamp then sofa", els)
	}
}

func TestStyleCSS(t *testing.T) {
	s := Style{Left: 60, Top: 100, Width: 300, Height: 250, Rotation: math.Pi / 2, Z: 3}
	css := s.CSS()
	for _, want := range []string{"left:60.00px", "top:100.00px", "width:300.00px", "height:250.00px", "z-index:3", "rotate(1.5708rad)", "visibility:hidden"} {
		if !strings.Contains(css, want) {
			t.Errorf("CSS() = %q, missing %q", css, want)
		}
	}
	s.Visible, s.Rotation = true, 0
	if css := s.CSS(); strings.Contains(css, "transform") || strings.Contains(css, "visibility") {
		t.Errorf("CSS() = %q, want no transform or visibility", css)
	}
}

type scriptedLoader struct {
	results map[string]acquire.Result
	block   chan struct{}
}

func (l *scriptedLoader) LoadAll(ctx context.Context, urls []string, onSettled func(acquire.Result)) acquire.Results {
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
		}
	}
	out := make(acquire.Results)
	for _, u := range urls {
		r, ok := l.results[u]
		if !ok {
			r = acquire.Result{URL: u, Image: &acquire.Image{URL: u, Size: geometry.Size{W: 10, H: 10}}}
		}
		r.URL = u
		out[u] = r
		onSettled(r)
	}
	return out
}

func TestLoadRevealsProgressively(t *testing.T) {
	var mu sync.Mutex
	var batches int
	r := New(testScene(), Options{OnChange: func([]Change) {
		mu.Lock()
		batches++
		mu.Unlock()
	}})
	r.Resize(600, 600)

	loader := &scriptedLoader{results: map[string]acquire.Result{
		"/bg.png": {Image: &acquire.Image{Size: geometry.Size{W: 1200, H: 1000}}},
	}}
	if err := r.Load(context.Background(), loader); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.State() != Fitted {
		t.Errorf("state after load = %v, want fitted", r.State())
	}
	for _, el := range r.Elements() {
		if !el.Loaded || !el.Style.Visible {
			t.Errorf("%s should be visible after load", el.LayerID)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if batches < 3 {
		t.Errorf("OnChange called %d times, want progressive batches", batches)
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	r := New(testScene(), Options{})
	r.Resize(600, 600)

	stale := &scriptedLoader{
		block: make(chan struct{}),
		results: map[string]acquire.Result{
			"/bg.png": {Image: &acquire.Image{Size: geometry.Size{W: 100, H: 900}}},
		},
	}
	done := make(chan error, 1)
	go func() { done <- r.Load(context.Background(), stale) }()

	fresh := &scriptedLoader{results: map[string]acquire.Result{
		"/bg.png": {Image: &acquire.Image{Size: geometry.Size{W: 1200, H: 1000}}},
	}}
	// Wait until the stale pass has begun before superseding it.
	for r.sup.Current(compositor.Ticket{}) {
		runtime.Gosched()
	}
	if err := r.Load(context.Background(), fresh); err != nil {
		t.Fatalf("fresh Load: %v", err)
	}
	close(stale.block)

	if err := <-done; !errors.Is(err, compositor.ErrSuperseded) {
		t.Errorf("stale Load = %v, want ErrSuperseded", err)
	}
	if want := (geometry.FitBox{Top: 50, Width: 600, Height: 500}); r.Fit() != want {
		t.Errorf("fit = %+v, stale results leaked into the view", r.Fit())
	}
}

// TestParityWithExport checks that, with the viewport equal to the export
// target, every preview element box matches what the rasterizer draws.
func TestParityWithExport(t *testing.T) {
	solid := func(w, h int, c color.Color) []byte {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.New(w, h, c), imaging.PNG); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	files := map[string][]byte{
		"/bg.png":        solid(1600, 900, color.NRGBA{B: 255, A: 255}),
		"/sofa-grey.png": solid(300, 300, color.NRGBA{R: 255, A: 255}),
		"/lamp.png":      solid(100, 300, color.NRGBA{G: 255, A: 255}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	loader, err := acquire.New(acquire.Options{Origin: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	s := testScene()
	target, _ := scene.PresetSquare.Size()

	r := New(s, Options{})
	r.Resize(target.W, target.H)
	if err := r.Load(context.Background(), loader); err != nil {
		t.Fatal(err)
	}

	comp := compositor.New(compositor.Options{Loader: loader})
	pass, err := comp.Compose(context.Background(), s, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pass.Fit != r.Fit() {
		t.Fatalf("fit mismatch: export %+v, preview %+v", pass.Fit, r.Fit())
	}

	els := r.Elements()
	if len(els) != len(pass.Instructions) {
		t.Fatalf("preview has %d elements, export %d instructions", len(els), len(pass.Instructions))
	}
	for i, in := range pass.Instructions {
		got := els[i].Style.Rect()
		if els[i].LayerID != in.LayerID {
			t.Fatalf("order mismatch at %d: %s vs %s", i, els[i].LayerID, in.LayerID)
		}
		if math.Abs(got.X-in.Dest.X) > 1 || math.Abs(got.Y-in.Dest.Y) > 1 ||
			math.Abs(got.W-in.Dest.W) > 1 || math.Abs(got.H-in.Dest.H) > 1 {
			t.Errorf("%s: preview %+v, export %+v", in.LayerID, got, in.Dest)
		}
	}

	res, err := export.New(comp, nil).Export(context.Background(), s, export.Options{Preset: scene.PresetSquare})
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]color.NRGBA{
		"sofa": {R: 255, A: 255},
		"lamp": {G: 255, A: 255},
	}
	for _, el := range els {
		rect := el.Style.Rect()
		px := color.NRGBAModel.Convert(img.At(int(rect.CenterX()), int(rect.CenterY()))).(color.NRGBA)
		if !colorNear(px, want[el.LayerID]) {
			t.Errorf("export pixel at %s's preview center = %v, want %v", el.LayerID, px, want[el.LayerID])
		}
	}
}

func colorNear(a, b color.NRGBA) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) < 8 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}
