package conway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vito/conway/pkg/ioctx"
)

// RunOptions controls how files are evaluated.
type RunOptions struct {
	// Strict makes undefined names errors instead of Nothing.
	Strict bool
	// Debug dumps each file's AST to stderr before evaluating it.
	Debug bool
}

// RunSource parses source and evaluates each statement with ev, printing
// every result to the context's stdout. It stops at the first error.
func RunSource(ctx context.Context, ev *Evaluator, filename string, source []byte) error {
	nodes, err := Parse(filename, source)
	if err != nil {
		return withParseSource(err, source)
	}
	return evalAndPrint(ctx, ev, filename, source, nodes)
}

// RunFile evaluates a single file in a fresh environment.
func RunFile(ctx context.Context, path string, opts RunOptions) error {
	return RunFiles(ctx, []string{path}, opts)
}

type parsedFile struct {
	path   string
	source []byte
	nodes  []Node
}

// RunFiles parses every file concurrently and then evaluates them in order
// against one environment, so later files see the bindings of earlier ones.
// Nothing is evaluated if any file fails to parse.
func RunFiles(ctx context.Context, paths []string, opts RunOptions) error {
	files := make([]parsedFile, len(paths))
	errs := make([]error, len(paths))

	eg := new(errgroup.Group)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		eg.Go(func() error {
			source, err := os.ReadFile(path)
			if err != nil {
				errs[i] = fmt.Errorf("failed to read source file: %w", err)
				return nil
			}
			nodes, err := Parse(path, source)
			if err != nil {
				errs[i] = withParseSource(err, source)
				return nil
			}
			files[i] = parsedFile{path: path, source: source, nodes: nodes}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	// report the first failure in argument order, not completion order
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	ev := NewEvaluator(NewEnvironment(), WithStrictNames(opts.Strict))
	for _, file := range files {
		if opts.Debug {
			if err := Dump(ioctx.StderrFromContext(ctx), file.nodes, DumpPretty); err != nil {
				return err
			}
		}
		if err := evalAndPrint(ctx, ev, file.path, file.source, file.nodes); err != nil {
			return err
		}
		slog.DebugContext(ctx, "evaluation completed", "file", file.path, "bindings", len(ev.Env().Bindings()))
	}
	return nil
}

func evalAndPrint(ctx context.Context, ev *Evaluator, filename string, source []byte, nodes []Node) error {
	ev.SetSource(filename, string(source))
	stdout := ioctx.StdoutFromContext(ctx)
	for _, node := range nodes {
		slog.DebugContext(ctx, "evaluating statement",
			"declares", DeclaredSymbols(node),
			"references", ReferencedSymbols(node))
		val, err := ev.Eval(ctx, node)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(stdout, val.String()); err != nil {
			return err
		}
	}
	return nil
}

// withParseSource attaches the source text to a parse error so that it can
// be rendered with highlighting.
func withParseSource(err error, source []byte) error {
	var parseErr *ParseError
	if errors.As(err, &parseErr) && parseErr.Loc != nil {
		return NewSourceError(parseErr, parseErr.Loc, string(source))
	}
	return err
}
