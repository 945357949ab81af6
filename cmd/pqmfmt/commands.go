package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vito/pqm/pkg/ioctx"
	"github.com/vito/pqm/pkg/pqm"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check that sources parse",
		Long: `Parse each file and report the first syntax error in it, without
formatting. Reads stdin when no files are given.`,
		Example: `  # Validate every query under a directory
  pqmfmt validate queries/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stderr := ioctx.StderrFromContext(ctx)

			if len(args) == 0 {
				source, err := io.ReadAll(ioctx.StdinFromContext(ctx))
				if err != nil {
					return errors.Wrap(err, "reading stdin")
				}
				if err := pqm.Validate(string(source)); err != nil {
					reportError(stderr, &fileResult{path: "<stdin>", source: string(source), err: err})
					return err
				}
				return nil
			}

			files, err := expandPaths(args)
			if err != nil {
				return err
			}
			results := processFiles(files, func(source string) (string, error) {
				return source, pqm.Validate(source)
			})

			var errs *multierror.Error
			for _, res := range results {
				if res.err != nil {
					reportError(stderr, res)
					errs = multierror.Append(errs, res.err)
				}
			}
			return listErrors(errs)
		},
	}
}

func astCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast [file]",
		Short: "Print the parsed syntax tree",
		Long:  `Parse a file (or stdin) and print its syntax tree, including attached comments.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var source []byte
			var err error
			if len(args) == 1 {
				source, err = os.ReadFile(args[0])
			} else {
				source, err = io.ReadAll(ioctx.StdinFromContext(ctx))
			}
			if err != nil {
				return err
			}

			doc, err := pqm.Parse(string(source))
			if err != nil {
				return err
			}
			_, err = pretty.Fprintf(ioctx.StdoutFromContext(ctx), "%# v\n", doc)
			return err
		},
	}
}

func configCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration pqmfmt would use in the current directory, after
config file discovery and flag overrides, in .pqm.toml syntax.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtCfg, err := resolveConfig(cmd, *cfg)
			if err != nil {
				return err
			}
			text, err := fmtCfg.EncodeTOML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(ioctx.StdoutFromContext(cmd.Context()), text)
			return err
		},
	}
}
