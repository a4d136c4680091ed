package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/marcin-skalski/prwatch/internal/config"
)

type ReposCmd struct {
	List   ReposListCmd   `cmd:"list" help:"List tracked repositories" default:"1"`
	Add    ReposAddCmd    `cmd:"add" help:"Track a repository"`
	Remove ReposRemoveCmd `cmd:"remove" help:"Stop tracking a repository"`
}

type ReposListCmd struct{}

func (c *ReposListCmd) Run(cli *CLI) error {
	cfg, _, err := cli.loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tLOCAL PATH")
	for _, r := range cfg.Repos {
		local := r.LocalPath
		if local == "" {
			local = "-"
		}
		fmt.Fprintf(w, "%s/%s\t%s\n", r.Owner, r.Name, local)
	}
	return w.Flush()
}

type ReposAddCmd struct {
	Owner string `help:"Repository owner"`
	Name  string `help:"Repository name"`
	Path  string `help:"Local checkout used by the review action" type:"path"`
}

func (c *ReposAddCmd) Run(cli *CLI) error {
	cfg, path, err := cli.loadConfig()
	if err != nil {
		return err
	}

	repo := config.RepoConfig{Owner: c.Owner, Name: c.Name, LocalPath: c.Path}
	if repo.Owner == "" || repo.Name == "" {
		if repo, err = config.PromptRepo(); err != nil {
			return err
		}
	}

	if err := cfg.AddRepo(repo); err != nil {
		if errors.Is(err, config.ErrRepoExists) {
			return fmt.Errorf("%s/%s is already tracked", repo.Owner, repo.Name)
		}
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Tracking %s/%s\n", repo.Owner, repo.Name)
	return nil
}

type ReposRemoveCmd struct {
	Repo string `arg:"" help:"Repository as OWNER/NAME"`
}

func (c *ReposRemoveCmd) Run(cli *CLI) error {
	cfg, path, err := cli.loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Repos) == 1 && cfg.Repos[0].Owner+"/"+cfg.Repos[0].Name == c.Repo {
		return fmt.Errorf("cannot remove %s: at least one repository must stay configured", c.Repo)
	}
	if !cfg.RemoveRepo(c.Repo) {
		return fmt.Errorf("%s is not tracked", c.Repo)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Stopped tracking %s\n", c.Repo)
	return nil
}
