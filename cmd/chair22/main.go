package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnikonov63/chair22/internal/config"
)

var (
	// Global flags, applied over the loaded config
	apiBase     string
	stateDir    string
	logLevel    string
	timeout     time.Duration
	maxInflight int
	debug       bool
)

// rootCmd runs the interactive notebook
var rootCmd = &cobra.Command{
	Use:   "chair22",
	Short: "chair22 - terminal notebook for a remote evaluation service",
	Long: `chair22 is a notebook client for a remote expression evaluator.

Each cell holds an input expression. Running a cell sends it to the
evaluation service under a persistent session and shows the result below it.
Running the last cell appends a fresh empty one.

Run without arguments to start the interactive notebook.`,
	SilenceUsage: true,
	RunE:         runInteractive,
}

// evalCmd runs expressions without the terminal UI
var evalCmd = &cobra.Command{
	Use:   "eval [expression...]",
	Short: "Evaluate expressions and print the transcript",
	Long: `Evaluates each expression as a notebook cell and prints an In/Out
transcript. Without arguments, expressions are read from stdin, one per line.

By default cells run one after another. With --concurrent all cells are
submitted at once; results are still printed in cell order.`,
	RunE: runEval,
}

// sessionCmd inspects the persisted session
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the evaluation session this notebook is bound to",
	Long: `Resolves the session id (restoring it from the state database or
creating a new one) and prints it with its state. --reset forgets the
persisted id first, so the next notebook starts a new session.`,
	RunE: runSession,
}

var (
	evalConcurrent bool
	sessionReset   bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiBase, "api", "", "evaluation service base URL (overrides API_BASE)")
	pf.StringVar(&stateDir, "state-dir", "", "directory for the state database and logs (overrides STATE_DIR)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	pf.DurationVar(&timeout, "timeout", 0, "per-request timeout (overrides REQUEST_TIMEOUT)")
	pf.IntVar(&maxInflight, "max-inflight", 0, "cap on concurrent evaluation requests, 0 for none (overrides MAX_INFLIGHT)")
	pf.BoolVar(&debug, "debug", false, "show the debug panel (overrides DEBUG)")

	evalCmd.Flags().BoolVar(&evalConcurrent, "concurrent", false, "submit all cells at once")
	sessionCmd.Flags().BoolVar(&sessionReset, "reset", false, "forget the persisted session before resolving")

	rootCmd.AddCommand(evalCmd, sessionCmd)
}

// loadConfig loads the layered config and applies any flags the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIBase = apiBase
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = stateDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = timeout
	}
	if flags.Changed("max-inflight") {
		cfg.MaxInflight = maxInflight
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
