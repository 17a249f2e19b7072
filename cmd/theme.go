package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/repositories"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/urfave/cli/v3"
)

// openPreferences opens the preference database and returns a repository over it. The caller closes db.
func (r *Runner) openPreferences() (*repositories.PreferenceRepository, *sql.DB, error) {
	db, err := shared.OpenPreferences(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	return repositories.NewPreferenceRepository(db), db, nil
}

// openThemes returns a theme store over the preference database. The caller closes db.
func (r *Runner) openThemes() (*repositories.ThemeStore, *sql.DB, error) {
	repo, db, err := r.openPreferences()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewThemeStore(repo, models.Theme(r.config.UI.DefaultTheme)), db, nil
}

// ThemeGet prints the saved theme.
func (r *Runner) ThemeGet(ctx context.Context, cmd *cli.Command) error {
	themes, db, err := r.openThemes()
	if err != nil {
		return err
	}
	defer db.Close()

	theme, err := themes.Theme()
	if err != nil {
		r.logger.Warn("stored theme is invalid, using fallback", "error", err)
	}
	return r.writePlainln("%s", theme)
}

// ThemeSet saves the theme given as argument.
func (r *Runner) ThemeSet(ctx context.Context, cmd *cli.Command) error {
	theme, err := models.ParseTheme(cmd.StringArg("theme"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	themes, db, err := r.openThemes()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := themes.SetTheme(theme); err != nil {
		return err
	}
	r.logger.Info("theme saved", "theme", theme)
	return r.writePlainln("%s", theme)
}

// ThemeToggle flips the saved theme and prints the new value.
func (r *Runner) ThemeToggle(ctx context.Context, cmd *cli.Command) error {
	themes, db, err := r.openThemes()
	if err != nil {
		return err
	}
	defer db.Close()

	theme, err := themes.Toggle()
	if err != nil {
		return err
	}
	return r.writePlainln("%s", theme)
}

// ThemeReset removes the saved theme and prints the fallback now in effect.
func (r *Runner) ThemeReset(ctx context.Context, cmd *cli.Command) error {
	themes, db, err := r.openThemes()
	if err != nil {
		return err
	}
	defer db.Close()

	theme, err := themes.Reset()
	if err != nil {
		return err
	}
	return r.writePlainln("%s", theme)
}

// Preferences prints every stored preference as "key=value (updated)".
func (r *Runner) Preferences(ctx context.Context, cmd *cli.Command) error {
	repo, db, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer db.Close()

	prefs, err := repo.List()
	if err != nil {
		return err
	}
	for _, p := range prefs {
		if err := r.writePlainln("%s=%s (%s)", p.Key, p.Value, p.UpdatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}
