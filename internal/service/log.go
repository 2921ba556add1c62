package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"license-signing-system/internal/model"
)

// OperationLogger 记录管理操作
type OperationLogger struct {
	db *gorm.DB
}

func NewOperationLogger(db *gorm.DB) *OperationLogger {
	return &OperationLogger{db: db}
}

func (l *OperationLogger) LogOperation(ctx context.Context, userID uint, action, target, targetID string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	entry := &model.OperationLog{
		UserID:    userID,
		Action:    action,
		Target:    target,
		TargetID:  targetID,
		Details:   string(detailsJSON),
		CreatedAt: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("保存操作日志失败: %w", err)
	}
	return nil
}

// GetOperationLogs 获取操作日志列表
func (l *OperationLogger) GetOperationLogs(ctx context.Context, page, pageSize int) ([]model.OperationLog, int64, error) {
	return l.list(l.db.WithContext(ctx).Model(&model.OperationLog{}), page, pageSize)
}

// GetUserOperationLogs 获取用户的操作日志
func (l *OperationLogger) GetUserOperationLogs(ctx context.Context, userID uint, page, pageSize int) ([]model.OperationLog, int64, error) {
	return l.list(l.db.WithContext(ctx).Model(&model.OperationLog{}).Where("user_id = ?", userID), page, pageSize)
}

func (l *OperationLogger) list(db *gorm.DB, page, pageSize int) ([]model.OperationLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.OperationLog
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
