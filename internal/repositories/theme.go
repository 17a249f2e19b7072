package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
)

// ThemeStore reads and writes the theme preference.
type ThemeStore struct {
	repo     *PreferenceRepository
	fallback models.Theme
}

// NewThemeStore creates a ThemeStore returning fallback until a theme is saved.
func NewThemeStore(repo *PreferenceRepository, fallback models.Theme) *ThemeStore {
	if _, err := models.ParseTheme(string(fallback)); err != nil {
		fallback = models.DefaultTheme
	}
	return &ThemeStore{repo: repo, fallback: fallback}
}

// Theme returns the saved theme.
//
// An unset preference yields the fallback. A corrupt value yields the fallback together with an error wrapping [shared.ErrInvalidTheme].
func (s *ThemeStore) Theme() (models.Theme, error) {
	pref, err := s.repo.Get(models.ThemeKey)
	if errors.Is(err, shared.ErrNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return s.fallback, err
	}

	theme, err := models.ParseTheme(pref.Value)
	if err != nil {
		return s.fallback, fmt.Errorf("%w: %v", shared.ErrInvalidTheme, err)
	}
	return theme, nil
}

// SetTheme saves theme.
func (s *ThemeStore) SetTheme(theme models.Theme) error {
	if _, err := models.ParseTheme(string(theme)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidTheme, err)
	}
	return s.repo.Set(models.ThemeKey, theme.String())
}

// Toggle flips the saved theme and returns the new value.
func (s *ThemeStore) Toggle() (models.Theme, error) {
	current, err := s.Theme()
	if err != nil && !errors.Is(err, shared.ErrInvalidTheme) {
		return current, err
	}

	next := current.Toggle()
	if err := s.SetTheme(next); err != nil {
		return current, err
	}
	return next, nil
}

// Reset removes the saved theme so the fallback applies again. Resetting an unset theme is not an error.
func (s *ThemeStore) Reset() (models.Theme, error) {
	if err := s.repo.Delete(models.ThemeKey); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return s.fallback, err
	}
	return s.fallback, nil
}
