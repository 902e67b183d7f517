package sqlite

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"weightlog/internal/domain"
)

type migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// migrations are applied in order, each at most once.
var migrations = []migration{
	{1, "create_weight_records", createWeightRecords},
	{2, "dedupe_weight_records_by_day", dedupeWeightRecords},
	{3, "create_user_preferences", createUserPreferences},
}

// Migrate applies every pending migration.
func Migrate(database *gorm.DB) error {
	return migrateTo(database, migrations[len(migrations)-1].Version)
}

func migrateTo(database *gorm.DB, target int) error {
	if err := ensureSchemaMigrationsTable(database); err != nil {
		return err
	}
	applied, err := appliedVersions(database)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version > target {
			break
		}
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := applyMigration(database, m); err != nil {
			return err
		}
	}
	return nil
}

func ensureSchemaMigrationsTable(database *gorm.DB) error {
	const createTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	if err := database.Exec(createTableSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

type appliedMigrationVersion struct {
	Version int `gorm:"column:version"`
}

func appliedVersions(database *gorm.DB) (map[int]struct{}, error) {
	rows := make([]appliedMigrationVersion, 0)
	if err := database.Raw(`SELECT version FROM schema_migrations`).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load applied migration versions: %w", err)
	}
	versions := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		versions[row.Version] = struct{}{}
	}
	return versions, nil
}

func applyMigration(database *gorm.DB, m migration) error {
	return database.Transaction(func(tx *gorm.DB) error {
		if err := m.Up(tx); err != nil {
			return fmt.Errorf("migration %d %s: %w", m.Version, m.Name, err)
		}
		if err := tx.Exec(
			`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC(),
		).Error; err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		return nil
	})
}

// createWeightRecords creates the original schema, which allowed several
// records per day.
func createWeightRecords(tx *gorm.DB) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS weight_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL DEFAULT 1,
  date INTEGER NOT NULL,
  day_key TEXT NOT NULL,
  weight REAL NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_weight_records_day_key ON weight_records(day_key);`,
	} {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

const deleteBatch = 500

// dedupeWeightRecords keeps the latest record of each day and makes the day
// key unique.
func dedupeWeightRecords(tx *gorm.DB) error {
	rows := make([]weightRecord, 0)
	if err := tx.Order("id").Find(&rows).Error; err != nil {
		return err
	}
	obs := make([]domain.WeightObservation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, r.observation())
	}

	keep := make(map[int64]string, len(rows))
	for _, o := range domain.DedupeByDay(obs) {
		keep[o.ID] = o.Day
	}

	var drop []int64
	for _, r := range rows {
		day, ok := keep[r.ID]
		if !ok {
			drop = append(drop, r.ID)
			continue
		}
		if day != r.DayKey {
			if err := tx.Model(&weightRecord{}).Where("id = ?", r.ID).Update("day_key", day).Error; err != nil {
				return err
			}
		}
	}
	for start := 0; start < len(drop); start += deleteBatch {
		end := min(start+deleteBatch, len(drop))
		if err := tx.Where("id IN ?", drop[start:end]).Delete(&weightRecord{}).Error; err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		`DROP INDEX IF EXISTS idx_weight_records_day_key;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_weight_records_user_day ON weight_records(user_id, day_key);`,
		`CREATE INDEX IF NOT EXISTS idx_weight_records_user_date ON weight_records(user_id, date);`,
	} {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUserPreferences(tx *gorm.DB) error {
	return tx.Exec(`CREATE TABLE IF NOT EXISTS user_preferences (
  user_id INTEGER PRIMARY KEY,
  target_weight_kg REAL NOT NULL DEFAULT 0,
  height_cm REAL NOT NULL DEFAULT 0,
  unit TEXT NOT NULL DEFAULT 'KG',
  reminder_enabled BOOLEAN NOT NULL DEFAULT 0,
  reminder_hour INTEGER NOT NULL DEFAULT 8,
  reminder_minute INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`).Error
}
