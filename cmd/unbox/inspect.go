package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fmeum/unbox/internal/report"
	"github.com/fmeum/unbox/internal/scan"
)

func newInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE LINE:COL",
		Short: "print the merged props of the usage at a position",
		Long: `Inspect evaluates the JSX element or call at LINE:COL of FILE, whether
it is tracked or not, and prints its merged props. Lines and columns
start at 1.

Values that depend on runtime state are printed as one_of(...) for
alternatives and unresolved() otherwise.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, col, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			file, err := filepath.Abs(args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			cfg, err := flags.loadConfig(filepath.Dir(file))
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(cfg.Dir, file)
			if err != nil || strings.HasPrefix(rel, "..") {
				return errors.Errorf("%s is outside of the project at %s", args[0], cfg.Dir)
			}
			logger := flags.logger(cmd)
			folder, err := folder(cfg, logger)
			if err != nil {
				return err
			}
			s := scan.New(os.DirFS(cfg.Dir), cfg.Components, cfg.Functions,
				scan.WithLogger(logger),
				scan.WithAliases(cfg.Aliases...),
				scan.WithFolder(folder),
			)
			u, err := s.Inspect(filepath.ToSlash(rel), line, col)
			if err != nil {
				return err
			}
			return report.WriteUsage(cmd.OutOrStdout(), u)
		},
	}
}

func parsePosition(s string) (line, col int, err error) {
	l, c, ok := strings.Cut(s, ":")
	if ok {
		line, err = strconv.Atoi(l)
		if err == nil {
			col, err = strconv.Atoi(c)
		}
	}
	if !ok || err != nil || line < 1 || col < 1 {
		return 0, 0, errors.Errorf("invalid position %q, want LINE:COL", s)
	}
	return line, col, nil
}
