package cli

import (
	"context"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/neuroglm/physioreport/pkg/buildinfo"
	"github.com/neuroglm/physioreport/pkg/cache"
)

// appName is used for the binary name and the cache directory.
const appName = "physioreport"

// Execute runs the physioreport CLI and returns an error if any command fails.
// This is the main entry point for the CLI application.
//
// The function sets up the root command with all subcommands (report,
// contrasts, cache), configures logging based on the --verbose flag, and
// executes the command tree.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "Physioreport renders physiological-contrast report documents",
		Long:         `Physioreport generates per-contrast statistical report pages for physiological noise regressors in a fitted GLM: it thresholds each contrast's statistic map, overlays it on an anatomical volume at the chosen crosshair position, and appends the pages to one multi-page PostScript document.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newReportCmd())
	root.AddCommand(newContrastsCmd())
	root.AddCommand(newCacheCmd())

	return root.ExecuteContext(ctx)
}

// newCLICache creates the page cache used by the report command.
// When the cache directory cannot be determined, caching is disabled
// rather than failing the run.
func newCLICache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/physioreport/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
