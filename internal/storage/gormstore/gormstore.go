// internal/storage/gormstore/gormstore.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

const migrationLockID = 7301

// Config selects the database.
type Config struct {
	Driver        string        `mapstructure:"driver"` // postgres, mysql or sqlite
	DSN           string        `mapstructure:"dsn"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// Dialector returns the GORM dialector for cfg.Driver.
func (c Config) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres", "postgresql":
		return postgres.Open(c.DSN), nil
	case "mysql":
		return mysql.Open(c.DSN), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", c.Driver)
	}
}

type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens the database described by cfg.
func New(cfg Config, zapLogger *zap.Logger) (storage.Store, error) {
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}
	return Open(dialector, cfg, zapLogger)
}

// Open builds a store on an explicit dialector.
func Open(dialector gorm.Dialector, cfg Config, zapLogger *zap.Logger) (storage.Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm"), cfg.SlowThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &gormStore{db: db, logger: zapLogger.Named("store")}, nil
}

// RunMigrations auto-migrates the schema. On postgres concurrent migrators
// are serialized with an advisory lock.
func (s *gormStore) RunMigrations() error {
	if s.db.Dialector.Name() == "postgres" {
		var locked bool
		if err := s.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&locked).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another migration is in progress")
		}
		defer s.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	if err := s.db.AutoMigrate(&models.Execution{}, &models.ExecutionStep{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Info("Migrations applied", zap.String("dialect", s.db.Dialector.Name()))
	return nil
}

// SaveExecution inserts exec together with its steps.
func (s *gormStore) SaveExecution(ctx context.Context, exec *models.Execution) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(exec).Error
	})
}

func (s *gormStore) GetExecution(ctx context.Context, requestID string) (*models.Execution, error) {
	var exec models.Execution
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_index") }).
		Where("request_id = ?", requestID).
		Order("id desc").
		First(&exec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *gormStore) ListExecutions(ctx context.Context, filter storage.ListFilter) ([]*models.Execution, error) {
	q := s.scoped(ctx, filter.Owner)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var execs []*models.Execution
	err := q.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_index") }).
		Order("executed_at desc, id desc").
		Find(&execs).Error
	return execs, err
}

type statusRow struct {
	Status  string
	Count   int64
	Profit  uint64
	AvgBps  float64
	BestBps uint64
}

func (s *gormStore) Stats(ctx context.Context, owner string) (*storage.Stats, error) {
	intType, floatType := "BIGINT", "DOUBLE PRECISION"
	if s.db.Dialector.Name() == "mysql" {
		intType, floatType = "UNSIGNED", "DOUBLE"
	}

	var rows []statusRow
	err := s.scoped(ctx, owner).
		Select(fmt.Sprintf("status, COUNT(*) AS count, "+
			"CAST(COALESCE(SUM(profit), 0) AS %[1]s) AS profit, "+
			"CAST(COALESCE(AVG(profit_bps), 0) AS %[2]s) AS avg_bps, "+
			"CAST(COALESCE(MAX(profit_bps), 0) AS %[1]s) AS best_bps", intType, floatType)).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate executions: %w", err)
	}

	stats := &storage.Stats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.StatusSucceeded:
			stats.Succeeded = r.Count
			stats.TotalProfit = r.Profit
			stats.AvgProfitBps = r.AvgBps
			stats.BestProfitBps = r.BestBps
		case models.StatusFailed:
			stats.Failed = r.Count
		case models.StatusCancelled:
			stats.Cancelled = r.Count
		}
	}
	return stats, nil
}

func (s *gormStore) scoped(ctx context.Context, owner string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Execution{})
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	return q
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
