package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// PromptNew asks for the settings of a first run and at least one repository.
func PromptNew() (*Config, error) {
	cfg := &Config{}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to prwatch").
				Description("No configuration file found, let's create one."),
			huh.NewInput().
				Title("What's your GitHub username?").
				Validate(required("username")).
				Value(&cfg.Username),
			huh.NewInput().
				Title("Which command should the review action run?").
				Description("Leave empty to use $TERMINAL.").
				Value(&cfg.Review.Command),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("prompt config: %w", err)
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Review.Command = strings.TrimSpace(cfg.Review.Command)

	for {
		repo, err := PromptRepo()
		if err != nil {
			return nil, err
		}
		if err := cfg.AddRepo(repo); err != nil {
			return nil, err
		}

		more := false
		if err := huh.NewConfirm().
			Title("Add another repository?").
			Value(&more).
			Run(); err != nil {
			return nil, fmt.Errorf("prompt config: %w", err)
		}
		if !more {
			break
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// PromptRepo asks for a single repository.
func PromptRepo() (RepoConfig, error) {
	var r RepoConfig
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository owner").
				Validate(required("owner")).
				Value(&r.Owner),
			huh.NewInput().
				Title("Repository name").
				Validate(required("name")).
				Value(&r.Name),
			huh.NewInput().
				Title("Local checkout path for reviews").
				Description("Absolute path, ~ allowed. Leave empty to skip.").
				Value(&r.LocalPath),
		),
	)
	if err := form.Run(); err != nil {
		return RepoConfig{}, fmt.Errorf("prompt repository: %w", err)
	}
	r.Owner = strings.TrimSpace(r.Owner)
	r.Name = strings.TrimSpace(r.Name)
	r.LocalPath = strings.TrimSpace(r.LocalPath)
	return r, nil
}
