package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fmeum/unbox/internal/report"
	"github.com/fmeum/unbox/internal/scan"
)

func newScanCmd(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "report the values used for every tracked construct",
		Long: `Scan extracts the usages of the tracked constructs from every source file
under dir, the current directory by default, and prints the values found
for each property.

Files under node_modules and hidden directories are skipped, as are
declaration files. Problems with single files are printed as warnings.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return errors.WithStack(err)
			}
			cfg, err := flags.loadConfig(root)
			if err != nil {
				return err
			}
			logger := flags.logger(cmd)
			folder, err := folder(cfg, logger)
			if err != nil {
				return err
			}
			al, err := aliases(cfg, root)
			if err != nil {
				return err
			}
			s := scan.New(os.DirFS(root), cfg.Components, cfg.Functions,
				scan.WithLogger(logger),
				scan.WithAliases(al...),
				scan.WithFolder(folder),
			)
			res, err := s.Scan(cmd.Context())
			if err != nil {
				return err
			}
			for _, err := range res.Errors {
				warnf(cmd, "warning: %v", err)
			}
			return report.Write(cmd.OutOrStdout(), f, s.Usage().Snapshot(true))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(report.Star), "output format: star or yaml")
	return cmd
}
