package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pawmart/storefront/pkg/config"
	"github.com/pawmart/storefront/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Record is one serialized entry in the embedded store.
type Record struct {
	Namespace string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (Record) TableName() string { return "records" }

// SQLiteStore backs the KV with an embedded SQLite database.
type SQLiteStore struct {
	conn *gorm.DB
	logg *logger.Logger
}

// OpenSQLite boots the embedded store and migrates its single table.
func OpenSQLite(ctx context.Context, cfg config.StoreConfig, logg *logger.Logger) (*SQLiteStore, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	if err := conn.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating local store: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "local store opened")
	}

	return &SQLiteStore{conn: conn, logg: logg}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	var record Record
	err := s.conn.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	if !decode(record.Value, dest) {
		if s.logg != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"namespace": namespace, "key": key})
			s.logg.Warn(ctx, "localstore.corrupt_record")
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value any) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", namespace, key, err)
	}
	record := Record{Namespace: namespace, Key: key, Value: payload, UpdatedAt: time.Now().UTC()}
	err = s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	err := s.conn.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
