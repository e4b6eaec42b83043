package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// undefined_table, raised when reading before the table was migrated.
const pgUndefinedTable = "42P01"

type PostgresSnapshotRepository struct {
	Db *gorm.DB
}

func NewPostgresSnapshotRepository(db *gorm.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{Db: db}
}

// Migrate creates the snapshot table when missing.
func (slf *PostgresSnapshotRepository) Migrate() error {
	return slf.Db.AutoMigrate(&models.SnapshotRecord{})
}

func (slf *PostgresSnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var record models.SnapshotRecord
	err := slf.Db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || isUndefinedTable(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(record.Value), nil
}

func (slf *PostgresSnapshotRepository) Set(ctx context.Context, key string, value []byte) error {
	record := models.SnapshotRecord{Key: key, Value: string(value)}
	err := slf.Db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (slf *PostgresSnapshotRepository) Delete(ctx context.Context, key string) error {
	err := slf.Db.WithContext(ctx).Where("key = ?", key).Delete(&models.SnapshotRecord{}).Error
	if isUndefinedTable(err) {
		return nil
	}
	return err
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
