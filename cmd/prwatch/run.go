package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/prwatch/internal/config"
	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/git"
	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/logging"
	"github.com/marcin-skalski/prwatch/internal/pr"
	"github.com/marcin-skalski/prwatch/internal/store"
	"github.com/marcin-skalski/prwatch/internal/tui"
)

type RunCmd struct {
	NoTUI    bool   `help:"Disable the dashboard and log refresh cycles to stderr" name:"no-tui"`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)"`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, path, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if r.LogLevel != "" {
		cfg.Log.Level = r.LogLevel
	}

	// Auto-detect TUI capability
	enableTUI := !r.NoTUI && os.Getenv("PRWATCH_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, logFile, err := logging.Setup(logging.Options{
		File:  cfg.LogFile,
		Level: cfg.Log.Level,
		Quiet: enableTUI,
	})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logFile.Close()

	gh := github.NewClient(cfg.FetchLimit, cfg.FetchTimeout, logger)
	st := store.New(cfg.Repositories(), logger)
	d := daemon.New(cfg, gh, st, logger)
	actions := launcher.New(cfg.Review, git.NewClient(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var p *tea.Program
	if enableTUI {
		m := tui.NewModel(ctx, d, st, actions, cfg.TUI.FrameInterval)
		p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		d.OnCycle(func(role pr.Role) {
			p.Send(tui.CycleDoneMsg{Role: role})
		})
	}

	// The watcher may start cycles, so the cycle callback is set first.
	go func() {
		err := config.Watch(ctx, path, logger, func(next *config.Config) {
			d.Reconfigure(next)
			actions.SetReview(next.Review)
		})
		if err != nil {
			logger.Warn("config watcher stopped", "err", err)
		}
	}()

	if !enableTUI {
		logger.Info("prwatch starting (headless)", "config", path, "user", cfg.Username)
		return d.Run(ctx)
	}

	logger.Info("prwatch starting", "config", path, "user", cfg.Username)
	d.Start(ctx)

	_, err = p.Run()
	stop()
	d.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
