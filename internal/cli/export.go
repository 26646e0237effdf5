package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/export"
	"github.com/matzehuels/layerstack/pkg/pipeline"
	"github.com/matzehuels/layerstack/pkg/scene"
)

// presetAll exports every preset in one run.
const presetAll = "all"

type exportOpts struct {
	acquireFlags
	output     string
	preset     string
	format     string
	quality    int
	background string
	selections []string
	refresh    bool
}

func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export <scene.json>",
		Short: "Render a scene to a PNG or JPEG at a preset resolution",
		Long: `Render a scene to a raster image.

Presets: square (1080x1080), portrait (1080x1920), landscape (1920x1080), or
"all" to write one file per preset. Layers whose image cannot be loaded are
left out and reported; the export still succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyExportDefaults(cmd, &opts)
			return c.runExport(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file, or base path with --preset all")
	cmd.Flags().StringVarP(&opts.preset, "preset", "p", "", "square (default), portrait, landscape, 1:1, 9:16, 16:9 or all")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "png (default) or jpeg; inferred from --output when unset")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100")
	cmd.Flags().StringVar(&opts.background, "background", "", "letterbox fill color (#rrggbb, #rrggbbaa or transparent)")
	cmd.Flags().StringArrayVarP(&opts.selections, "select", "s", nil, "choose a layer image as layer=image (repeatable)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached artifacts")
	opts.acquireFlags.register(cmd)
	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"square", "portrait", "landscape", presetAll}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// applyExportDefaults fills unset flags from the config file.
func (c *CLI) applyExportDefaults(cmd *cobra.Command, opts *exportOpts) {
	cfg := c.config.Export
	if !cmd.Flags().Changed("preset") {
		opts.preset = cfg.Preset
	}
	if !cmd.Flags().Changed("format") {
		if opts.output != "" {
			opts.format = string(formatFromPath(opts.output, cfg.Format))
		} else {
			opts.format = cfg.Format
		}
	}
	if !cmd.Flags().Changed("quality") {
		opts.quality = cfg.Quality
	}
	if !cmd.Flags().Changed("background") {
		opts.background = cfg.Background
	}
}

func (c *CLI) runExport(ctx context.Context, input string, opts exportOpts) error {
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
	runner := sess.runner(logger)

	base := pipeline.Options{
		Scene:      s,
		Format:     opts.format,
		Quality:    opts.quality,
		Background: opts.background,
		Refresh:    opts.refresh,
		Origin:     sess.loader.Origin(),
		ProxyBase:  sess.loader.ProxyBase(),
		Logger:     logger,
	}

	presets := []scene.Preset{}
	if strings.EqualFold(opts.preset, presetAll) {
		presets = scene.Presets()
	} else {
		p, err := scene.ParsePreset(opts.preset)
		if err != nil {
			return err
		}
		presets = append(presets, p)
	}

	spinner := newSpinner(ctx, fmt.Sprintf("Exporting %s", filepath.Base(input)))
	spinner.Start()
	prog := newProgress(logger)
	results, err := runner.ExecuteAll(ctx, base, presets)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Exported %d image(s)", len(results)))

	for _, res := range results {
		path := outputPath(opts.output, input, res, len(results) > 1)
		if err := os.WriteFile(path, res.Artifact, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printSuccess("Exported %s", StyleHighlight.Render(string(res.Preset)))
		printFile(path)
		printExportStats(int(res.Size.W), int(res.Size.H), res.Stats.Bytes, res.Stats.Skipped, res.CacheInfo.ArtifactHit)
		if res.Export != nil {
			for _, sk := range res.Export.Skipped {
				printWarning("layer %s skipped: %v", sk.LayerID, sk.Err)
			}
			if res.Export.BackgroundErr != nil {
				printWarning("background not drawn: %v", res.Export.BackgroundErr)
			}
			for _, w := range res.Export.Warnings {
				printDetail("layer %s: clamped %s", w.LayerID, strings.Join(w.Fields, ", "))
			}
		}
	}
	return nil
}

// applySelections applies "layer=image" pairs on top of the scene's own
// selection.
func applySelections(s *scene.Scene, pairs []string) (*scene.Scene, error) {
	for _, p := range pairs {
		layerID, imageID, ok := strings.Cut(p, "=")
		if !ok || layerID == "" || imageID == "" {
			return nil, fmt.Errorf("invalid selection %q (want layer=image)", p)
		}
		s = s.WithSelection(layerID, imageID)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// outputPath derives the file name for one result. Without -o the scene
// file's base name is used; with several presets the preset is appended.
func outputPath(output, input string, res *pipeline.Result, multi bool) string {
	ext := res.Format.Ext()
	base := output
	if base == "" {
		base = strings.TrimSuffix(input, filepath.Ext(input))
	} else if e := strings.ToLower(filepath.Ext(base)); e == ".png" || e == ".jpg" || e == ".jpeg" {
		if !multi {
			return base
		}
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if multi || output == "" {
		base += "_" + string(res.Preset)
	}
	return base + ext
}

// formatFromPath picks the format from an output file extension, falling
// back to the configured format for other extensions.
func formatFromPath(path, fallback string) export.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return export.FormatFromPath(path)
	}
	return export.Format(fallback)
}
