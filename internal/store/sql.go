package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// storageEntry 键值表的一行
type storageEntry struct {
	// Key 存储键，主键
	Key string `gorm:"primaryKey;size:191"`

	// Value 整个会话集合的 JSON
	Value []byte `gorm:"not null"`

	UpdatedAt time.Time
}

// TableName 指定表名
func (storageEntry) TableName() string {
	return "datachat_storage"
}

// SQLBackend 用一张键值表保存会话集合，支持 sqlite 与 mysql
type SQLBackend struct {
	db  *gorm.DB
	key string
}

// NewSQLBackend 打开数据库并迁移键值表
func NewSQLBackend(driver, dsn, key string) (*SQLBackend, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&storageEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &SQLBackend{db: db, key: key}, nil
}

func (b *SQLBackend) Load(ctx context.Context) ([]byte, error) {
	var entry storageEntry
	err := b.db.WithContext(ctx).Where(&storageEntry{Key: b.key}).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entry.Value, nil
}

func (b *SQLBackend) Save(ctx context.Context, data []byte) error {
	entry := storageEntry{Key: b.key, Value: data, UpdatedAt: time.Now()}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (b *SQLBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
