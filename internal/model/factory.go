package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"velovis/internal/config"
	"velovis/internal/entity"
	"velovis/internal/model/sql"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DBTypeMySQL    = "mysql"
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
	// DBTypeMemory is a private in-memory SQLite database, used by tests and demos.
	DBTypeMemory = "memory"
)

// RepositoryFactory 根据数据库类型创建对应的仓库实现
type RepositoryFactory struct{}

// NewRepositoryFactory 创建新的仓库工厂
func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

// InitRepository 初始化仓库的辅助函数
func InitRepository(cfg *config.Config) (Repository, error) {
	if cfg == nil || cfg.DBType == "" {
		return nil, fmt.Errorf("database type is not configured")
	}
	return NewRepositoryFactory().CreateRepository(cfg)
}

// CreateRepository 根据配置创建对应的仓库实现
func (f *RepositoryFactory) CreateRepository(cfg *config.Config) (Repository, error) {
	switch cfg.DBType {
	case DBTypeMySQL:
		return f.createMySQLRepository(cfg)
	case DBTypeSQLite:
		return f.createSQLiteRepository(cfg)
	case DBTypePostgres:
		return f.createPostgresRepository(cfg)
	case DBTypeMemory:
		return NewMemoryRepository(cfg.DBName)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

// createMySQLRepository 创建 MySQL 仓库
func (f *RepositoryFactory) createMySQLRepository(cfg *config.Config) (Repository, error) {
	dsn := cfg.DSNURL
	if dsn == "" {
		// 从各个配置项构建 DSN
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBAddr, cfg.DBPort, cfg.DBName)
	}

	db, err := f.openGormDB(mysql.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return f.finish(db)
}

// createSQLiteRepository 创建 SQLite 仓库
func (f *RepositoryFactory) createSQLiteRepository(cfg *config.Config) (Repository, error) {
	filePath := cfg.DBPath
	if filePath == "" {
		filePath = "datas/velovis.db"
	}

	// SQLite 会在连接时自动创建 .db 文件，但前提是目录已存在
	if dir := filepath.Dir(filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	db, err := f.openGormDB(sqlite.Open(filePath + "?_foreign_keys=on&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	// SQLite 单写者，避免 database is locked
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return f.finish(db)
}

// createPostgresRepository 创建 PostgreSQL 仓库
func (f *RepositoryFactory) createPostgresRepository(cfg *config.Config) (Repository, error) {
	dsn := cfg.DSNURL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBAddr, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	}

	db, err := f.openGormDB(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return f.finish(db)
}

// NewMemoryRepository opens a named in-memory SQLite database and migrates it.
// Repositories opened with the same name share data; different names are isolated.
func NewMemoryRepository(name string) (Repository, error) {
	if name == "" {
		name = "velovis"
	}
	f := NewRepositoryFactory()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := f.openGormDB(sqlite.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory SQLite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// The database lives as long as one connection stays open.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return f.finish(db)
}

func (f *RepositoryFactory) finish(db *gorm.DB) (Repository, error) {
	// 自动迁移数据库表结构
	if err := f.migrateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return Wrap(sql.NewGormRepository(db)), nil
}

func (f *RepositoryFactory) openGormDB(dialector gorm.Dialector) (*gorm.DB, error) {
	// GORM 日志输出到 logrus
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 5,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // 使用单数表名
		},
	})
	if err != nil {
		return nil, err
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// migrateSchema 迁移数据库表结构
func (f *RepositoryFactory) migrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.DbUser{},
		&entity.DbRole{},
		&entity.DbRolePermission{},
		&entity.DbUserRole{},
		&entity.DbRefreshToken{},
		&entity.DbPasswordResetToken{},
	)
}
