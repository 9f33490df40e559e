package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"leadagent/app/config"
	"leadagent/app/model"

	"github.com/samber/do"
	"github.com/samber/oops"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

var _ do.Shutdownable = (*Service)(nil)

type Service struct {
	db *gorm.DB
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	db, err := Open(appCtx, cfg.DB)
	if err != nil {
		return nil, err
	}

	return &Service{db: db}, nil
}

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, cfg config.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			_ = os.MkdirAll(dir, 0755)
		}
		dialector = sqlite.New(sqlite.Config{
			DriverName: "sqlite",
			DSN:        cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		})
	default:
		dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.User, cfg.Pass, cfg.Host, cfg.Database)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, oops.In("database").With("driver", cfg.Driver).Wrapf(err, "failed to open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, oops.In("database").Wrapf(err, "failed to get sql.DB")
	}

	if cfg.Driver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err = sqlDB.PingContext(pingCtx); err != nil {
		return nil, oops.In("database").With("driver", cfg.Driver).Wrapf(err, "failed to ping database")
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("Database ready", "driver", cfg.Driver)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return oops.In("database").Wrapf(err, "failed to migrate schema")
	}

	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) Shutdown() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
