package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/httputil"
	"github.com/matzehuels/layerstack/pkg/proxy"
)

type serveOpts struct {
	addr    string
	allow   []string
	enforce bool
	noCache bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image proxy",
		Long: `Run the image proxy that re-serves cross-origin images with a permissive
CORS header:

  GET /proxy-image?url=<absolute image URL>
  GET /healthz

Hosts outside --allow are logged but still served unless --enforce is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Proxy
			if !cmd.Flags().Changed("addr") {
				opts.addr = cfg.Addr
			}
			if !cmd.Flags().Changed("allow") {
				opts.allow = cfg.AllowList
			}
			if !cmd.Flags().Changed("enforce") {
				opts.enforce = cfg.Enforce
			}
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", proxy.DefaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&opts.allow, "allow", nil, "allowed upstream hosts, e.g. cdn.example.com,*.example.org")
	cmd.Flags().BoolVar(&opts.enforce, "enforce", false, "refuse hosts outside the allow-list with 403")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not cache upstream images")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	store, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := proxy.New(proxy.Options{
		Policy:   proxy.AllowList(opts.allow),
		Enforce:  opts.enforce,
		Cache:    store,
		Client:   httputil.NewClient(c.config.Acquire.Timeout.Duration),
		Logger:   logger,
		Attempts: c.config.Acquire.Attempts,
	})

	printInfo("Proxy listening on %s", StyleLink.Render(opts.addr))
	if len(opts.allow) > 0 {
		printDetail("allow-list: %v (enforced: %v)", opts.allow, opts.enforce)
	}
	err = srv.ListenAndServe(ctx, opts.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
