package settings

import (
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	getSettingQuery = `SELECT value FROM settings WHERE key = $1`
	setSettingQuery = `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(key string) (string, error) {
	var value string
	if err := r.db.QueryRow(getSettingQuery, key).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *PostgresRepository) Set(key, value string) error {
	_, err := r.db.Exec(setSettingQuery, key, value)
	return err
}
