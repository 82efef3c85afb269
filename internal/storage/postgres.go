package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
)

// InitPostgres 初始化 PostgreSQL 连接并执行迁移
func InitPostgres(cfg *config.PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := BuildDSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	db, err := Open(postgres.Open(dsn), logger.Warn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("postgres ready", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Open 打开任意 gorm 方言；TranslateError 让唯一约束冲突映射为 gorm.ErrDuplicatedKey
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

// Close 释放底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Migrate 自动迁移核心表
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.InviteCode{},
		&model.Comment{},
		&model.Reaction{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
