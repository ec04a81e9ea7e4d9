package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oakwood-commons/facetview/internal/config"
	"github.com/oakwood-commons/facetview/pkg/logger"
	"github.com/oakwood-commons/facetview/pkg/settings"
)

var (
	debug      bool
	logFile    string
	configFile string
	noColor    bool
	quiet      bool
)

var (
	rootCtx     = context.Background()
	logSink     *os.File
	termGetSize = term.GetSize
	stdoutIsTTY = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

var rootCmd = &cobra.Command{
	Use:   settings.CliBinaryName,
	Short: "Drive the facet widgets of a search results page from the terminal",
	Long: `facetview attaches the faceted-search widget controllers (facet show-more
and filtering, facet previews, freetext autocomplete and the refine select)
to a server-rendered results page and lets you operate them from a terminal.`,
	Example:       "\n  facetview browse https://repo.example.org/cgi/search?q=rivers\n  facetview render page.html --base-url https://repo.example.org/cgi/search\n  facetview config get -o toml\n",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		run := settings.NewCliParams()
		run.LogFile = logFile
		run.ConfigFile = config.ResolvePath(configFile)
		run.NoColor = noColor
		run.IsQuiet = quiet
		if debug {
			run.MinLogLevel = -1
		}

		switch {
		case logFile != "":
			if err := CloseLog(); err != nil {
				return err
			}
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logSink = f
			logger.SetOutput(f)
		case cmd.Name() == "browse":
			// JSON lines would tear the alt screen.
			logger.SetOutput(io.Discard)
		}
		lgr := logger.Get(run.MinLogLevel)
		lgr = logger.WithValues(lgr, logger.RootCommandKey, settings.CliBinaryName, logger.SubCommandKey, cmd.Name())

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = logger.WithLogger(ctx, lgr)
		rootCtx = settings.IntoContext(ctx, run)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug events (debounce, stale responses, routing)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append JSON logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "path to a YAML or TOML config file (default $XDG_CONFIG_HOME/facetview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational messages on stderr")

	rootCmd.Version = cliVersionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(versionCmd, browseCmd, renderCmd, configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// CloseLog closes the --log-file handle. Call it after logger.Sync.
func CloseLog() error {
	if logSink == nil {
		return nil
	}
	err := logSink.Close()
	logSink = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// runSettings returns the settings of the current invocation.
func runSettings() *settings.Run {
	if run, ok := settings.FromContext(rootCtx); ok {
		return run
	}
	return settings.NewCliParams()
}

// loadConfig loads the merged configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	run := runSettings()
	cfg, err := config.Load(run.ConfigFile)
	if err != nil {
		return nil, err
	}
	if run.NoColor {
		cfg.UI.NoColor = true
	}
	return cfg, nil
}

// infof prints an informational line on stderr unless --quiet is set.
func infof(cmd *cobra.Command, format string, args ...any) {
	if runSettings().IsQuiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func cliVersionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print facetview version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cliVersionString())
		return nil
	},
}
