package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/vito/pqm/pkg/ioctx"
	"github.com/vito/pqm/pkg/pqm"
	"golang.org/x/sync/errgroup"
)

// sourceExtensions are the file extensions picked up from directories.
var sourceExtensions = []string{".pq", ".m"}

// fileResult is the outcome of processing one input.
type fileResult struct {
	path      string
	source    string
	formatted string
	err       error
}

func (r *fileResult) changed() bool {
	return r.source != r.formatted
}

func runFormat(ctx context.Context, cfg Config, fmtCfg pqm.Config, paths []string) error {
	if len(paths) == 0 || cfg.Stdin {
		if cfg.Write {
			return errors.New("--write requires file arguments")
		}
		return formatStdin(ctx, cfg, fmtCfg)
	}

	files, err := expandPaths(paths)
	if err != nil {
		return err
	}
	if cfg.Output != "" && len(files) != 1 {
		return errors.Errorf("--output takes a single input file, got %d", len(files))
	}

	results := processFiles(files, func(source string) (string, error) {
		return pqm.Format(source, fmtCfg)
	})

	stdout := ioctx.StdoutFromContext(ctx)
	stderr := ioctx.StderrFromContext(ctx)

	var errs *multierror.Error
	unformatted := 0
	for _, res := range results {
		if res.err != nil {
			reportError(stderr, res)
			errs = multierror.Append(errs, res.err)
			continue
		}

		switch {
		case cfg.Check:
			if res.changed() {
				fmt.Fprintf(stdout, "%s: not formatted\n", res.path)
				unformatted++
			}
		case cfg.Write:
			if !res.changed() {
				continue
			}
			if err := os.WriteFile(res.path, []byte(res.formatted), 0644); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "writing %s", res.path))
				continue
			}
			fmt.Fprintf(stderr, "Formatted: %s\n", res.path)
		case cfg.Output != "":
			if err := os.WriteFile(cfg.Output, []byte(res.formatted), 0644); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "writing %s", cfg.Output))
			}
		default:
			fmt.Fprint(stdout, res.formatted)
		}
	}

	if unformatted > 0 {
		errs = multierror.Append(errs, errors.Errorf("%d of %d files not formatted", unformatted, len(results)))
	}
	return listErrors(errs)
}

func formatStdin(ctx context.Context, cfg Config, fmtCfg pqm.Config) error {
	source, err := io.ReadAll(ioctx.StdinFromContext(ctx))
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}

	formatted, err := pqm.Format(string(source), fmtCfg)
	if err != nil {
		reportError(ioctx.StderrFromContext(ctx), &fileResult{
			path:   "<stdin>",
			source: string(source),
			err:    err,
		})
		return err
	}

	switch {
	case cfg.Check:
		if string(source) != formatted {
			return errors.New("input is not formatted")
		}
		return nil
	case cfg.Output != "":
		return errors.Wrapf(os.WriteFile(cfg.Output, []byte(formatted), 0644), "writing %s", cfg.Output)
	}
	fmt.Fprint(ioctx.StdoutFromContext(ctx), formatted)
	return nil
}

// processFiles runs fn over every file concurrently and returns the results
// in input order.
func processFiles(files []string, fn func(source string) (string, error)) []*fileResult {
	results := make([]*fileResult, len(files))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		eg.Go(func() error {
			start := time.Now()
			res := &fileResult{path: path}
			results[i] = res

			content, err := os.ReadFile(path)
			if err != nil {
				res.err = errors.Wrapf(err, "reading %s", path)
				return nil
			}
			res.source = string(content)

			res.formatted, err = fn(res.source)
			if err != nil {
				res.err = errors.Wrap(err, path)
				return nil
			}
			slog.Debug("processed", "path", path, "changed", res.changed(), "took", time.Since(start))
			return nil
		})
	}
	// Failures are recorded per file; the group itself never errors.
	_ = eg.Wait()

	return results
}

// expandPaths replaces directories with the source files inside them.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "accessing %s", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSourceFile(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading directory %s", path)
		}
	}
	return files, nil
}

func isSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range sourceExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// listErrors flattens a multierror into one error per line.
func listErrors(errs *multierror.Error) error {
	if errs == nil {
		return nil
	}
	errs.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, err := range es {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "\n")
	}
	return errs.ErrorOrNil()
}
