package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robby/dragboard/internal/auth"
	"github.com/robby/dragboard/internal/config"
	"github.com/robby/dragboard/internal/gh"
	"github.com/robby/dragboard/internal/logging"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/repo"
	"github.com/robby/dragboard/internal/store"
	"github.com/robby/dragboard/internal/tui"
)

func main() {
	app := &App{}
	err := newRootCmd(app).Execute()
	app.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// backend is what the TUI and the move commands need from a board source.
type backend interface {
	tui.Backend
	reorder.Gateway
}

// App carries the global flags and what PersistentPreRunE builds from them.
type App struct {
	ConfigPath string
	Backend    string
	LogLevel   string

	cfg     *config.Config
	logger  *log.Logger
	closers []io.Closer
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dragboard [board]",
		Short: "Kanban boards in the terminal, reordered with the mouse",
		Long: `dragboard is a terminal kanban board. Drag cards and columns with the
mouse, or move them from the keyboard; every move is applied at once and
saved in the background.

Boards live in a local SQLite database by default. With --backend github a
GitHub Projects v2 project is shown as a board: the options of a
single-select field become columns.

Authentication (github backend):
  1. Environment variable: Set GITHUB_TOKEN (see github.token_env)
  2. GitHub CLI: Run 'gh auth login'`,
		Example: strings.TrimSpace(`
  # Pick a board interactively
  dragboard

  # Open a board by name
  dragboard Work

  # Scriptable commands
  dragboard board add Work
  dragboard card add <column-id> "Write the release notes"
  dragboard move card <card-id> <column-id> 0 --board Work
`),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd.Name() == "dragboard")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return runTUI(cmd.Context(), app, ref)
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", config.DefaultConfigPath(), "Config file")
	cmd.PersistentFlags().StringVar(&app.Backend, "backend", "", "Board source: local or github (overrides config)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (overrides config)")

	cmd.AddCommand(
		newBoardCmd(app),
		newColumnCmd(app),
		newCardCmd(app),
		newChecklistCmd(app),
		newLabelCmd(app),
		newAttachmentCmd(app),
		newMoveCmd(app),
		newConfigCmd(app),
	)
	return cmd
}

// setup loads the configuration and builds the logger. While the TUI owns
// the terminal, logs go to log.file or nowhere.
func (a *App) setup(interactive bool) error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.Backend != "" {
		cfg.Backend = a.Backend
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if interactive && cfg.Log.File == "" {
		a.logger = logging.Discard()
		return nil
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.WithError(err).Warn("Close failed")
		}
	}
	a.closers = nil
}

// openRepo opens the local database. It is closed with the app.
func (a *App) openRepo() (*repo.Repo, error) {
	path := a.cfg.Storage.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	r, err := repo.Open(path, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r)
	return r, nil
}

// openBackend opens the configured board source.
func (a *App) openBackend() (backend, error) {
	if a.cfg.Backend == config.BackendLocal {
		r, err := a.openRepo()
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	token, err := auth.GetToken(a.cfg.GitHub.TokenEnv)
	if err != nil {
		return nil, err
	}
	client, err := gh.New(gh.DefaultEndpoint, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return gh.NewBackend(client, gh.BackendOptions{
		Owner:      a.cfg.GitHub.Owner,
		GroupField: a.cfg.GitHub.GroupField,
		Logger:     a.logger,
	}), nil
}

func runTUI(ctx context.Context, app *App, ref string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := app.openBackend()
	if err != nil {
		return err
	}
	if ref == "" && app.cfg.Backend == config.BackendGitHub {
		ref = app.cfg.GitHub.Project
	}

	st := store.New()
	updates, unsubscribe := st.Subscribe(64)
	defer unsubscribe()

	failures := make(chan reorder.Failure, 16)
	logSink := reorder.LogSink{Logger: app.logger}
	exec := reorder.New(ctx, st, b, reorder.Options{
		Sink:    reorder.MultiSink{logSink, reorder.ChanSink{C: failures, Fallback: logSink}},
		Logger:  app.logger,
		Timeout: app.cfg.Reorder.Timeout,
	})
	defer exec.Close()

	model := tui.NewAppModel(tui.Deps{
		Ctx:      ctx,
		Backend:  b,
		Store:    st,
		Executor: exec,
		Updates:  updates,
		Failures: failures,
		Drag:     app.cfg.DragSettings(),
		Logger:   app.logger,
	}, ref)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}

	// Let queued moves reach storage before the database closes.
	exec.Wait()
	return nil
}
