package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
)

// PreferenceRepository persists [models.Preference] rows.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new PreferenceRepository with the given database connection
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get retrieves a preference by key. Missing keys return an error wrapping [shared.ErrNotFound].
func (r *PreferenceRepository) Get(key string) (*models.Preference, error) {
	query := `SELECT key, value, updated_at FROM preferences WHERE key = ?`

	var (
		pref      models.Preference
		updatedAt sql.NullTime
	)

	err := r.db.QueryRow(query, key).Scan(&pref.Key, &pref.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: preference %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preference: %w", err)
	}

	if updatedAt.Valid {
		pref.UpdatedAt = updatedAt.Time
	}
	return &pref, nil
}

// Set inserts or replaces the value stored under key
func (r *PreferenceRepository) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: preference key is required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// Delete removes the preference stored under key
func (r *PreferenceRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM preferences WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: preference %s", shared.ErrNotFound, key)
	}
	return nil
}

// List returns every stored preference ordered by key
func (r *PreferenceRepository) List() ([]models.Preference, error) {
	rows, err := r.db.Query(`SELECT key, value, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []models.Preference
	for rows.Next() {
		var (
			pref      models.Preference
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&pref.Key, &pref.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		if updatedAt.Valid {
			pref.UpdatedAt = updatedAt.Time
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}
	return prefs, nil
}
