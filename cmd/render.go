package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/ui"
	"github.com/oakwood-commons/facetview/pkg/logger"
)

var (
	renderOutput string
	renderWidth  int
	renderKeys   []string
	renderBase   string
)

var renderCmd = &cobra.Command{
	Use:   "render <url|file>",
	Short: "Attach the widget once and print the result",
	Long: `Attach the widget controllers to a page and print the view as text or the
mutated page as HTML. --press plays a key script first, with debounce timers
firing at once, so interactions can be scripted:

  facetview render page.html --base-url https://repo.example.org/cgi/search --press "lo<Down><CR>"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd, args[0])
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "text", "output format: text|html")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "truncate text lines to this width (default: terminal width, unlimited when piped)")
	renderCmd.Flags().StringArrayVar(&renderKeys, "press", nil, "keys to play before printing; <Key> names special keys (<Tab>, <S-Tab>, <CR>, <Esc>, <Space>, <Down>, <Up>, <Left>, <Right>)")
	renderCmd.Flags().StringVar(&renderBase, "base-url", "", "URL the page file is served from; endpoints resolve against it")
}

func runRender(cmd *cobra.Command, arg string) error {
	if renderOutput != "text" && renderOutput != "html" {
		return fmt.Errorf("invalid --output %q (expected text or html)", renderOutput)
	}
	keys, err := ui.ParseKeys(renderKeys)
	if err != nil {
		return fmt.Errorf("parse --press: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	doc, err := loadDocument(rootCtx, client, arg, renderBase)
	if err != nil {
		return err
	}
	attach := attacher(rootCtx, cfg, client, debounce.ImmediateScheduler)
	w, err := attach(doc)
	if err != nil {
		return err
	}

	m := ui.NewModel(ui.Options{
		Context: rootCtx,
		Widget:  w,
		Attach:  attach,
		Load: func(ctx context.Context, u *url.URL) (*dom.Document, error) {
			return client.Page(ctx, u)
		},
		Logger: logger.Component(rootCtx, "render"),
	})
	m.Play(keys)
	if status, isErr := m.Status(); isErr {
		infof(cmd, "%s", status)
	}
	w = m.Widget()
	defer w.Detach()

	out := cmd.OutOrStdout()
	if renderOutput == "html" {
		page, err := w.Document().Render()
		if err != nil {
			return fmt.Errorf("render html: %w", err)
		}
		_, err = fmt.Fprintln(out, page)
		return err
	}

	styles := ui.PlainStyles()
	width := renderWidth
	if stdoutIsTTY() {
		if !cfg.UI.NoColor {
			styles = ui.NewStyles(cfg.UI.Theme, false)
		}
		if width == 0 {
			if tw, _, err := termGetSize(int(os.Stdout.Fd())); err == nil {
				width = tw
			}
		}
	}
	_, err = fmt.Fprintln(out, ui.RenderSnapshot(w, styles, width))
	return err
}
