package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vnikonov63/chair22/internal/evalclient"
	"github.com/vnikonov63/chair22/internal/session"
)

// Runner sends submissions to the evaluator for one session.
type Runner struct {
	sessionID  session.ID
	dispatcher evalclient.Dispatcher
	logger     *slog.Logger
}

// NewRunner binds a dispatcher to a resolved session.
func NewRunner(id session.ID, d evalclient.Dispatcher, logger *slog.Logger) *Runner {
	return &Runner{sessionID: id, dispatcher: d, logger: logger}
}

// SessionID returns the session the runner is bound to.
func (r *Runner) SessionID() session.ID { return r.sessionID }

// Execute performs the evaluation request for sub and folds every outcome
// into output text. It never fails: transport problems become the cell's
// output.
func (r *Runner) Execute(ctx context.Context, sub Submission) Completion {
	start := time.Now()
	result, err := r.dispatcher.Eval(ctx, int64(r.sessionID), sub.Input)

	output := result
	if err != nil {
		output = FormatError(err)
	}

	r.logger.Debug("cell evaluated",
		"cell_id", sub.CellID,
		"repl_id", r.sessionID,
		"ok", err == nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		r.logger.Warn("evaluation failed", "cell_id", sub.CellID, "error", err)
	}

	return Completion{Submission: sub, Output: output}
}

// FormatError renders an evaluation failure the way it is shown in a cell.
func FormatError(err error) string {
	var se *evalclient.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Server error: %d %s", se.Code, se.Body)
	}
	return err.Error()
}
