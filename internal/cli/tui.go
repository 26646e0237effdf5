package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/layerstack/pkg/compositor"
	"github.com/matzehuels/layerstack/pkg/preview"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// Approximate pixel size of one terminal cell.
const (
	cellWidth  = 8.0
	cellHeight = 16.0
)

// chrome is the number of terminal rows used by the header and footer.
const chrome = 4

var (
	canvasFitStyle   = lipgloss.NewStyle().Foreground(colorDim)
	canvasFocusStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	canvasLayerStyle = lipgloss.NewStyle().Foreground(colorWhite)
)

type changesMsg []preview.Change

type loadDoneMsg struct{ err error }

// previewModel drives a preview.Renderer from terminal events. The terminal
// window is the container; each cell stands for cellWidth x cellHeight
// pixels.
type previewModel struct {
	ctx      context.Context
	renderer *preview.Renderer
	loader   compositor.Loader

	focus      int
	cols, rows int
	loading    bool
	changes    int
	status     string
	err        error
}

func newPreviewModel(ctx context.Context, r *preview.Renderer, loader compositor.Loader) previewModel {
	return previewModel{ctx: ctx, renderer: r, loader: loader, loading: true}
}

func (m previewModel) Init() tea.Cmd {
	return m.load()
}

func (m previewModel) load() tea.Cmd {
	r, loader, ctx := m.renderer, m.loader, m.ctx
	return func() tea.Msg {
		return loadDoneMsg{err: r.Load(ctx, loader)}
	}
}

func (m previewModel) layers() []scene.Layer {
	return m.renderer.Scene().Layers
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, max(msg.Height-chrome, 0)
		m.renderer.Resize(float64(m.cols)*cellWidth, float64(m.rows)*cellHeight)

	case changesMsg:
		m.changes += len(msg)

	case loadDoneMsg:
		if errors.Is(msg.err, compositor.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.focus > 0 {
				m.focus--
			}
		case "down", "j":
			if m.focus < len(m.layers())-1 {
				m.focus++
			}
		case "left", "h":
			return m.cycle(-1)
		case "right", "l":
			return m.cycle(1)
		}
	}
	return m, nil
}

// cycle selects the previous or next candidate image of the focused layer
// and reloads.
func (m previewModel) cycle(step int) (tea.Model, tea.Cmd) {
	layers := m.layers()
	if m.focus >= len(layers) {
		return m, nil
	}
	l := layers[m.focus]
	if len(l.Images) < 2 {
		m.status = fmt.Sprintf("layer %s has a single image", l.ID)
		return m, nil
	}
	current, _ := l.Selected(m.renderer.Scene().Selection)
	idx := 0
	for i, img := range l.Images {
		if img.ID == current.ID {
			idx = i
			break
		}
	}
	next := l.Images[(idx+step+len(l.Images))%len(l.Images)]
	if next.ID == "" {
		m.status = fmt.Sprintf("layer %s images need ids to be selectable", l.ID)
		return m, nil
	}
	m.renderer.Select(l.ID, next.ID)
	m.status = fmt.Sprintf("%s → %s", l.ID, next.ID)
	m.loading = true
	return m, m.load()
}

func (m previewModel) View() string {
	var b strings.Builder

	fit := m.renderer.Fit()
	b.WriteString(StyleTitle.Render("Layerstack preview"))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s · fit %.0fx%.0f at %.0f,%.0f",
		m.renderer.State(), fit.Width, fit.Height, fit.Left, fit.Top)))
	if m.loading {
		b.WriteString(StyleDim.Render(" · loading"))
	}
	b.WriteString("\n")

	b.WriteString(m.canvas())

	layers := m.layers()
	if m.focus < len(layers) {
		l := layers[m.focus]
		img, _ := l.Selected(m.renderer.Scene().Selection)
		label := img.ID
		if label == "" {
			label = img.URL
		}
		b.WriteString(fmt.Sprintf("\n%s %s %s",
			canvasFocusStyle.Render(string(layerGlyph(m.focus))),
			StyleValue.Render(layerName(l)),
			StyleDim.Render(label)))
	}
	if m.err != nil {
		b.WriteString("  " + styleIconError.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString("  " + StyleDim.Render(m.status))
	}
	b.WriteString("\n" + StyleDim.Render("↑/↓ layer  ←/→ image  q quit"))
	return b.String()
}

// canvas draws the fit box and every element as a grid of glyphs, one
// letter per layer. Unloaded elements use the lowercase letter. Rotation is
// not drawn.
func (m previewModel) canvas() string {
	if m.cols <= 0 || m.rows <= 0 {
		return ""
	}
	grid := make([][]rune, m.rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", m.cols))
	}
	fill := func(left, top, width, height float64, ch rune) {
		x0, y0 := cellIndex(left, cellWidth), cellIndex(top, cellHeight)
		x1, y1 := cellIndex(left+width, cellWidth), cellIndex(top+height, cellHeight)
		for y := max(y0, 0); y < min(y1, m.rows); y++ {
			for x := max(x0, 0); x < min(x1, m.cols); x++ {
				grid[y][x] = ch
			}
		}
	}

	fit := m.renderer.Fit()
	fill(fit.Left, fit.Top, fit.Width, fit.Height, '·')

	index := make(map[string]int)
	for i, l := range m.layers() {
		index[l.ID] = i
	}
	for _, el := range m.renderer.Elements() {
		g := layerGlyph(index[el.LayerID])
		if !el.Loaded {
			g = []rune(strings.ToLower(string(g)))[0]
		}
		st := el.Style
		fill(st.Left, st.Top, st.Width, st.Height, g)
	}

	focusGlyph := layerGlyph(m.focus)
	var b strings.Builder
	for _, row := range grid {
		for _, ch := range row {
			switch {
			case ch == '·':
				b.WriteString(canvasFitStyle.Render(string(ch)))
			case ch == focusGlyph || ch == []rune(strings.ToLower(string(focusGlyph)))[0]:
				b.WriteString(canvasFocusStyle.Render(string(ch)))
			case ch == ' ':
				b.WriteRune(ch)
			default:
				b.WriteString(canvasLayerStyle.Render(string(ch)))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// selectionFlags renders the current selection as export flags.
func (m previewModel) selectionFlags() string {
	s := m.renderer.Scene()
	var parts []string
	for _, l := range s.Layers {
		if id, ok := s.Selection[l.ID]; ok {
			parts = append(parts, fmt.Sprintf("-s %s=%s", l.ID, id))
		}
	}
	return strings.Join(parts, " ")
}

func cellIndex(px, cell float64) int {
	return int(math.Round(px / cell))
}

func layerGlyph(i int) rune {
	const glyphs = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < 0 {
		return '?'
	}
	return rune(glyphs[i%len(glyphs)])
}

func layerName(l scene.Layer) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}
