package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document 产物文档（PostgreSQL 存储后端使用）
// Key 形如 "2025-2026/modules/CS1010.json"
type Document struct {
	Key       string         `gorm:"column:key;type:text;primaryKey" json:"key"`
	Body      datatypes.JSON `gorm:"column:body;type:jsonb;not null" json:"body"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}
