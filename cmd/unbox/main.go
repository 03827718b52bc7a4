// Command unbox reports the literal values passed to tracked components
// and style functions across a TypeScript project.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fmeum/unbox/internal/config"
	"github.com/fmeum/unbox/internal/fold"
	"github.com/fmeum/unbox/internal/logging"
	"github.com/fmeum/unbox/internal/resolve"
)

func main() {
	os.Exit(Main())
}

// Main runs the command line and returns the exit code.
func Main() int {
	cmd := newRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

type globalFlags struct {
	config  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "unbox",
		Short: "extract the static values passed to components and style functions",
		Long: `unbox statically evaluates the props of tracked JSX components and the
object arguments of tracked functions, and reports every literal value
they can take.

The tracked constructs are read from unbox.star, UNBOX, unbox.yaml or
.unbox.yaml in the project directory or one of its parents.
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "config file to use instead of searching for one")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log evaluation details")
	cmd.AddCommand(newScanCmd(flags), newInspectCmd(flags))
	return cmd
}

func (f *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := logging.WARN
	if f.verbose {
		level = logging.DEBUG
	}
	return logging.New(level, cmd.ErrOrStderr())
}

// loadConfig reads the --config file, or searches upward from dir.
func (f *globalFlags) loadConfig(dir string) (*config.Config, error) {
	if f.config != "" {
		cfg, err := config.LoadFile(f.config)
		if err != nil {
			return nil, err
		}
		if cfg.Dir, err = filepath.Abs(cfg.Dir); err != nil {
			return nil, errors.WithStack(err)
		}
		return cfg, nil
	}
	cfg, _, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.Errorf("no config file found in %s or its parents (looked for %s)", dir, strings.Join(config.ConfigFileNames, ", "))
	}
	return cfg, nil
}

// folder loads the helper modules named by the config.
func folder(cfg *config.Config, logger *slog.Logger) (*fold.Folder, error) {
	f := fold.New(fold.WithLogger(logger))
	if err := f.LoadHelpers(os.DirFS(cfg.Dir), cfg.Helpers...); err != nil {
		return nil, err
	}
	return f, nil
}

// aliases rebases the alias targets of cfg onto root.
func aliases(cfg *config.Config, root string) ([]resolve.Alias, error) {
	out := make([]resolve.Alias, len(cfg.Aliases))
	for i, a := range cfg.Aliases {
		rel, err := filepath.Rel(root, filepath.Join(cfg.Dir, filepath.FromSlash(a.Target)))
		if err != nil {
			return nil, errors.Wrapf(err, "alias %s", a.Prefix)
		}
		out[i] = resolve.Alias{Prefix: a.Prefix, Target: filepath.ToSlash(rel)}
	}
	return out, nil
}

func warnf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
