// Package store is the durable home of finished pipeline results. Records
// are written once at the very end of a successful run and never updated.
package store

import (
	"context"
	"sync"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/roboforge/types"
)

// RobotRecord is the immutable final artifact of one pipeline run.
type RobotRecord struct {
	ID                string `gorm:"primaryKey" json:"id"`
	Name              string `json:"name"`
	Lore              string `json:"lore"`
	HP                int    `json:"hp"`
	ATK               int    `json:"atk"`
	DEF               int    `json:"def"`
	OriginalImagePath string `json:"original_image_path"`
	ImagePath         string `json:"image_path"`
	ModelPath         string `json:"model_path"`
	AttackModelPath   string `json:"attack_model_path"`
	CreatedAt         int64  `json:"created_at"`
	GenerationTimeMS  int64  `gorm:"column:generation_time_ms" json:"generation_time_ms"`
}

// TableName keeps the historical table name.
func (RobotRecord) TableName() string { return "robots" }

// Repository is the persistence boundary for finished runs. There is no
// update or delete: records are append-only.
type Repository interface {
	Insert(ctx context.Context, rec *RobotRecord) error
	ListAll(ctx context.Context) ([]RobotRecord, error)
}

// GormRepository stores records in SQLite through GORM. A single handle is
// shared between the pipeline (one insert per run) and the read-only list
// path, guarded by a mutex.
type GormRepository struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// Open opens (or creates) the SQLite database at path and migrates the
// robots table.
func Open(path string, logger *zap.Logger) (*GormRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, types.Errorf(types.ErrInternal, "open database %s", path).WithCause(err)
	}
	return NewGormRepository(db, logger)
}

// NewGormRepository wraps an existing GORM handle, migrating the schema.
func NewGormRepository(db *gorm.DB, logger *zap.Logger) (*GormRepository, error) {
	if err := db.AutoMigrate(&RobotRecord{}); err != nil {
		return nil, types.NewError(types.ErrInternal, "migrate robots table").WithCause(err)
	}
	return &GormRepository{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// Insert implements Repository.
func (r *GormRepository) Insert(ctx context.Context, rec *RobotRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return types.Errorf(types.ErrInternal, "insert robot %s", rec.ID).WithCause(err)
	}
	r.logger.Info("robot stored", zap.String("id", rec.ID), zap.String("name", rec.Name))
	return nil
}

// ListAll implements Repository, returning records in insertion order.
func (r *GormRepository) ListAll(ctx context.Context) ([]RobotRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []RobotRecord
	if err := r.db.WithContext(ctx).Order("rowid").Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrInternal, "list robots").WithCause(err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
