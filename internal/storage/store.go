package storage

import (
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"xhrbridge/internal/config"
	"xhrbridge/internal/logger"
	"xhrbridge/pkg/traffic"
)

// ExchangeRecord 一次交换的持久化记录
type ExchangeRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ExchangeID string `gorm:"size:36;index"`
	HandleID   string `gorm:"size:36;index"`
	Method     string `gorm:"size:16"`
	URL        string
	Status     int
	Outcome    string `gorm:"size:16"` // load / error / abort
	Failure    string
	Bytes      int64
	DurationMS int64
	Headers    string // 响应头 JSON
	CreatedAt  time.Time
}

// Store 交换日志存储
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开 sqlite 存储并迁移表结构
func Open(cfg *config.Config, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(cfg.Sqlite.Dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: cfg.Sqlite.Prefix},
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ExchangeRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: l}, nil
}

// Save 写入一条交换记录
func (s *Store) Save(rec *ExchangeRecord) error {
	return s.db.Create(rec).Error
}

// List 按时间倒序返回最近的交换记录
func (s *Store) List(limit int) ([]ExchangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []ExchangeRecord
	err := s.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HeadersJSON 将响应头编码为 JSON 对象串，供记录落库
func HeadersJSON(h traffic.Header) string {
	js := "{}"
	for k, v := range h {
		// 头部名中的 "." 需转义，避免被当作路径分隔符
		path := strings.ReplaceAll(k, ".", `\.`)
		if out, err := sjson.Set(js, path, v); err == nil {
			js = out
		}
	}
	return js
}
