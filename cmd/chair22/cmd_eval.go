package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vnikonov63/chair22/internal/logging"
	"github.com/vnikonov63/chair22/internal/notebook"
)

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exprs := args
	if len(exprs) == 0 {
		exprs, err = readExpressions(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if len(exprs) == 0 {
		return errors.New("no expressions to evaluate")
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	id, err := a.binder.Resolve(ctx)
	if err != nil {
		return err
	}

	runner := notebook.NewRunner(id, a.dispatcher, logger)
	nb := evaluate(ctx, runner, exprs, evalConcurrent)
	return writeTranscript(cmd.OutOrStdout(), nb)
}

// evaluate runs every expression as a cell. Sequential runs type each
// expression into the trailing cell the way a user would; concurrent runs
// pre-fill the cells and submit them all at once.
func evaluate(ctx context.Context, runner *notebook.Runner, exprs []string, concurrent bool) notebook.Notebook {
	if concurrent {
		e := notebook.NewEngine(runner, notebook.WithNotebook(notebook.FromInputs(exprs...)))
		defer e.Close()
		for i := range exprs {
			e.RunCell(ctx, i)
		}
		e.Wait()
		return e.Snapshot()
	}

	e := notebook.NewEngine(runner)
	defer e.Close()
	for _, expr := range exprs {
		last := e.Snapshot().Len() - 1
		e.UpdateInput(last, expr)
		e.RunCell(ctx, last)
		e.Wait()
	}
	return e.Snapshot()
}

// writeTranscript prints every resolved cell as an In/Out pair
func writeTranscript(w io.Writer, nb notebook.Notebook) error {
	for _, c := range nb.Cells() {
		if c.Status != notebook.Resolved {
			continue
		}
		if _, err := fmt.Fprintf(w, "In [%d]: %s\nOut[%d]: %s\n\n", c.ID, c.Input, c.ID, c.Output); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}
	return nil
}

// readExpressions reads one expression per non-blank line
func readExpressions(r io.Reader) ([]string, error) {
	var exprs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exprs = append(exprs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read expressions: %w", err)
	}
	return exprs, nil
}
