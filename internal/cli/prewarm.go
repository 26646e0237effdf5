package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/prewarm"
	"github.com/matzehuels/layerstack/pkg/scene"
)

type prewarmOpts struct {
	acquireFlags
	priority string
}

func (c *CLI) prewarmCommand() *cobra.Command {
	opts := prewarmOpts{priority: prewarm.PriorityHigh.String()}

	cmd := &cobra.Command{
		Use:   "prewarm <scene.json|url>...",
		Short: "Download images into the cache ahead of use",
		Long: `Download images into the cache so later previews and exports read them
locally. Arguments are scene files (every image of every layer is warmed,
not just the selected ones) or image URLs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrewarm(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.priority, "priority", opts.priority, "high or low; low uses fewer concurrent downloads")
	opts.acquireFlags.register(cmd)

	return cmd
}

func (c *CLI) runPrewarm(ctx context.Context, args []string, opts prewarmOpts) error {
	logger := loggerFromContext(ctx)

	urls, err := prewarmURLs(args)
	if err != nil {
		return err
	}
	if opts.noCache {
		return fmt.Errorf("prewarm needs a cache; drop --no-cache")
	}

	sess, err := c.newSession(ctx, opts.acquireFlags)
	if err != nil {
		return err
	}
	defer sess.Close()

	spinner := newSpinner(ctx, fmt.Sprintf("Warming %d image(s)", len(urls)))
	spinner.Start()
	prog := newProgress(logger)
	reqs, unresolved := resolveURLs(sess.loader, urls)
	report, err := sess.warmer.PrewarmRequests(ctx, reqs, prewarm.ParsePriority(opts.priority))
	spinner.Stop()
	if err != nil {
		return err
	}
	maps.Copy(report.Failed, unresolved)
	prog.done("Prewarm finished")

	printSuccess("Warmed %d, already cached %d", len(report.Warmed), len(report.Skipped))
	for u, ferr := range report.Failed {
		printWarning("%s: %v", u, ferr)
	}
	st := sess.warmer.Stats()
	printDetail("%d entries, %s stored this run", st.Entries, formatBytes(st.Bytes))
	return nil
}

// resolveURLs resolves scene URLs the way the loader will, so relative URLs
// use --origin, cross-origin URLs go through --proxy and entries land under
// the absolute URL the loader looks up.
func resolveURLs(loader *acquire.Loader, urls []string) ([]acquire.Request, map[string]error) {
	reqs := make([]acquire.Request, 0, len(urls))
	failed := make(map[string]error)
	for _, u := range urls {
		req, err := loader.Resolve(u)
		if err != nil {
			failed[u] = err
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, failed
}

// prewarmURLs expands scene files into their image URLs. Other arguments
// are taken as URLs.
func prewarmURLs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] && !strings.HasPrefix(u, "data:") {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, arg := range args {
		if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
			s, err := scene.Import(arg)
			if err != nil {
				return nil, err
			}
			add(s.BackgroundURL())
			for _, l := range s.Layers {
				for _, img := range l.Images {
					add(img.URL)
				}
			}
			continue
		}
		add(arg)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no image URLs to prewarm")
	}
	return urls, nil
}
