package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/compositor"
	"github.com/matzehuels/layerstack/pkg/preview"
	"github.com/matzehuels/layerstack/pkg/scene"
)

type previewOpts struct {
	acquireFlags
	width, height float64
	css           bool
	interactive   bool
	selections    []string
}

func (c *CLI) previewCommand() *cobra.Command {
	opts := previewOpts{width: 800, height: 600}

	cmd := &cobra.Command{
		Use:   "preview <scene.json>",
		Short: "Compute the live preview layout of a scene",
		Long: `Compute where every layer lands in a container of the given size.

With -i the terminal becomes the container: resizing the window re-fits the
scene, up/down focus a layer and left/right switch its image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().Float64Var(&opts.width, "width", opts.width, "container width in pixels")
	cmd.Flags().Float64Var(&opts.height, "height", opts.height, "container height in pixels")
	cmd.Flags().BoolVar(&opts.css, "css", false, "print inline CSS per element instead of a table")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "interactive terminal preview")
	cmd.Flags().StringArrayVarP(&opts.selections, "select", "s", nil, "choose a layer image as layer=image (repeatable)")
	opts.acquireFlags.register(cmd)

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, input string, opts previewOpts) error {
	logger := loggerFromContext(ctx)

	s, err := scene.Import(input)
	if err != nil {
		return err
	}
	if s, err = applySelections(s, opts.selections); err != nil {
		return err
	}

	sess, err := c.newSession(ctx, opts.acquireFlags)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.interactive {
		return runPreviewTUI(ctx, s, sess.loader)
	}

	r := preview.New(s, preview.Options{Logger: logger})
	defer r.Close()
	r.Resize(opts.width, opts.height)

	prog := newProgress(logger)
	if err := r.Load(ctx, sess.loader); err != nil && !errors.Is(err, compositor.ErrSuperseded) {
		return err
	}
	prog.done("Loaded scene images")

	fit := r.Fit()
	printKeyValue("State", r.State().String())
	printKeyValue("Fit box", fmt.Sprintf("%.1f,%.1f %.1fx%.1f", fit.Left, fit.Top, fit.Width, fit.Height))

	elements := r.Elements()
	if opts.css {
		for _, el := range elements {
			fmt.Fprintf(out, "%s: %s\n", el.LayerID, el.Style.CSS())
		}
		return nil
	}
	fmt.Fprintln(out, renderTable(elementHeaders, elementRows(elements)))
	if missing := len(s.Layers) - len(elements); missing > 0 {
		printWarning("%d layer(s) hidden or failed to load", missing)
	}
	return nil
}

var elementHeaders = []string{"Layer", "Image", "Left", "Top", "Width", "Height", "Rotation", "Z", "Loaded"}

func elementRows(elements []preview.Element) [][]string {
	rows := make([][]string, 0, len(elements))
	for _, el := range elements {
		st := el.Style
		image := el.ImageID
		if image == "" {
			image = "-"
		}
		rows = append(rows, []string{
			el.LayerID,
			image,
			fmtPx(st.Left), fmtPx(st.Top), fmtPx(st.Width), fmtPx(st.Height),
			strconv.FormatFloat(st.Rotation*180/math.Pi, 'f', 1, 64) + "°",
			strconv.Itoa(st.Z),
			strconv.FormatBool(el.Loaded),
		})
	}
	return rows
}

func fmtPx(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func runPreviewTUI(ctx context.Context, s *scene.Scene, loader compositor.Loader) error {
	var prog *tea.Program
	r := preview.New(s, preview.Options{
		OnChange: func(ch []preview.Change) {
			// Send blocks until the event loop reads it, and Update itself
			// triggers changes.
			if prog != nil {
				go prog.Send(changesMsg(ch))
			}
		},
	})
	defer r.Close()

	m := newPreviewModel(ctx, r, loader)
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(previewModel); ok {
		if flags := fm.selectionFlags(); flags != "" {
			printInfo("Export this selection with: %s", flags)
		}
	}
	return nil
}
