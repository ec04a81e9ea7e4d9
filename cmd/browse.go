package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/metrics"
	"github.com/oakwood-commons/facetview/internal/ui"
	"github.com/oakwood-commons/facetview/pkg/logger"
)

var (
	baseURL      string
	metricsAddr  string
	browseWidth  int
	browseHeight int
)

// runBrowser is swapped in tests to avoid starting a terminal program.
var runBrowser = ui.Run

var browseCmd = &cobra.Command{
	Use:   "browse <url|file>",
	Short: "Operate the facet widgets of a results page interactively",
	Long: `Load a results page, attach the widget controllers and operate them from
the terminal. Tab moves focus, typing edits the focused input, Enter and
Space activate buttons and preview toggles, arrow keys drive autocomplete,
and left/right then Enter pick a refine option, which loads the refined page.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd, args[0])
	},
}

func init() {
	browseCmd.Flags().StringVar(&baseURL, "base-url", "", "URL the page file is served from; endpoints resolve against it")
	browseCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics and /healthz on this address while browsing")
	browseCmd.Flags().IntVar(&browseWidth, "width", 0, "force the view width in columns")
	browseCmd.Flags().IntVar(&browseHeight, "height", 0, "force the view height in rows")
}

func runBrowse(cmd *cobra.Command, arg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lgr := logger.FromContext(rootCtx)
	client := newClient(cfg)

	doc, err := loadDocument(rootCtx, client, arg, baseURL)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(sigCtx)
	attach := attacher(ctx, cfg, client, nil)
	w, err := attach(doc)
	if err != nil {
		return err
	}

	var srv *http.Server
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", metricsAddr, err)
		}
		srv = &http.Server{Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		infof(cmd, "serving metrics on http://%s/metrics", ln.Addr())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					lgr.Error(err, "shutdown metrics server")
				}
			}()
		}
		return runBrowser(ui.Options{
			Context: ctx,
			Widget:  w,
			Attach:  attach,
			Load: func(ctx context.Context, u *url.URL) (*dom.Document, error) {
				return client.Page(ctx, u)
			},
			Styles: ui.NewStyles(cfg.UI.Theme, cfg.UI.NoColor),
			Logger: logger.Component(ctx, "browser"),
		}, browseWidth, browseHeight)
	})
	return g.Wait()
}
