package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/prwatch/internal/config"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `help:"Path to the config file" type:"path" env:"PRWATCH_CONFIG"`

	Run   RunCmd   `cmd:"" help:"Start the dashboard (default)" default:"1"`
	Repos ReposCmd `cmd:"repos" help:"Manage tracked repositories"`
}

func (c *CLI) configPath() (string, error) {
	if c.Config != "" {
		return c.Config, nil
	}
	return config.DefaultPath()
}

// loadConfig loads the config file. When it does not exist and stdin is a
// terminal, the first-run form creates it.
func (c *CLI) loadConfig() (*config.Config, string, error) {
	path, err := c.configPath()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}

	cfg, err = config.PromptNew()
	if err != nil {
		return nil, "", err
	}
	if err := config.Save(path, cfg); err != nil {
		return nil, "", err
	}
	fmt.Printf("✓ Saved config to %s\n", path)
	return cfg, path, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("prwatch"),
		kong.Description("Watch the GitHub pull requests you review and author."),
		kong.Vars{"version": "prwatch " + Version},
		kong.UsageOnError(),
		kong.Bind(&cli),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
