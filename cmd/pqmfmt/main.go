package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vito/pqm/pkg/ioctx"
	"github.com/vito/pqm/pkg/pqm"
)

// Config holds the command-line options
type Config struct {
	Debug      bool
	Check      bool
	Write      bool
	Output     string
	Stdin      bool
	Compact    bool
	Expanded   bool
	Indent     int
	Tabs       bool
	ConfigFile string
}

func main() {
	ctx := context.Background()
	ctx = ioctx.StdinToContext(ctx, os.Stdin)
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)

	if err := fang.Execute(ctx, rootCmd(),
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "pqmfmt [flags] [file...]",
		Short: "Format Power Query M source",
		Long: `Format Power Query M source according to a canonical style.

With no files, or with --stdin, pqmfmt reads standard input and writes the
result to standard output. Directories are searched for .pq and .m files.

Settings come from --config, or from the nearest .pqm.toml, .pqm.yaml or
.pqm.yml above the working directory. Flags override file settings.`,
		Example: `  # Format a query and print the result
  pqmfmt query.pq

  # Format files in place
  pqmfmt -w queries/

  # Fail if anything is not formatted
  pqmfmt --check queries/

  # Format from a pipe with a compact layout
  cat query.pq | pqmfmt --compact`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(ioctx.StderrFromContext(cmd.Context()), cfg.Debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtCfg, err := resolveConfig(cmd, cfg)
			if err != nil {
				return err
			}
			return runFormat(cmd.Context(), cfg, fmtCfg, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	flags.BoolVar(&cfg.Compact, "compact", false, "Use the compact preset")
	flags.BoolVar(&cfg.Expanded, "expanded", false, "Use the expanded preset")
	flags.IntVar(&cfg.Indent, "indent", 4, "Spaces per indentation level")
	flags.BoolVar(&cfg.Tabs, "tabs", false, "Indent with tabs")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to a config file (searched for if not specified)")
	cmd.MarkFlagsMutuallyExclusive("compact", "expanded")

	cmd.Flags().BoolVarP(&cfg.Check, "check", "c", false, "Exit non-zero and list files that are not formatted")
	cmd.Flags().BoolVarP(&cfg.Write, "write", "w", false, "Write result to source file instead of stdout")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "Write result to this file")
	cmd.Flags().BoolVar(&cfg.Stdin, "stdin", false, "Read source from stdin")
	cmd.MarkFlagsMutuallyExclusive("check", "write", "output")

	cmd.AddCommand(validateCmd(), astCmd(), configCmd(&cfg))

	return cmd
}

// setupLogging installs a tint handler, colored when w is a terminal.
func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	})
	slog.SetDefault(slog.New(handler))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// resolveConfig layers the configuration: the preset (--compact/--expanded,
// else the file's own, else default), then the settings in --config or a
// discovered project file, then the remaining flags.
func resolveConfig(cmd *cobra.Command, cfg Config) (pqm.Config, error) {
	var preset string
	switch {
	case cfg.Compact:
		preset = "compact"
	case cfg.Expanded:
		preset = "expanded"
	}

	fmtCfg, err := pqm.PresetConfig(preset)
	if err != nil {
		return pqm.Config{}, err
	}
	var opts []pqm.ConfigOption
	if preset != "" {
		opts = append(opts, pqm.WithPreset(preset))
	}

	switch {
	case cfg.ConfigFile != "":
		loaded, err := pqm.LoadConfig(cfg.ConfigFile, opts...)
		if err != nil {
			return pqm.Config{}, err
		}
		slog.Debug("loaded config", "path", cfg.ConfigFile)
		fmtCfg = loaded
	default:
		path, found, err := pqm.FindConfig(".", opts...)
		if err != nil {
			return pqm.Config{}, err
		}
		if found != nil {
			slog.Debug("found config", "path", path)
			fmtCfg = *found
		}
	}

	flags := cmd.Flags()
	if flags.Changed("indent") {
		fmtCfg.IndentSize = cfg.Indent
	}
	if flags.Changed("tabs") {
		fmtCfg.UseTabs = cfg.Tabs
	}

	if err := fmtCfg.Validate(); err != nil {
		return pqm.Config{}, err
	}
	return fmtCfg, nil
}
