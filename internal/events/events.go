// Package events 文件生命周期事件
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/anoixa/asset-store/utils"
)

// 事件类型，同时用作 AMQP routing key
const (
	FileCreated   = "file.created"
	FileCompleted = "file.completed"
	FileLinked    = "file.linked"
	FileUnlinked  = "file.unlinked"
	FileTrashed   = "file.trashed"
	FileRestored  = "file.restored"
	FileDeleted   = "file.deleted"
	VariantReady  = "variant.ready"
)

// Event 事件内容
type Event struct {
	Type        string                 `json:"type"`
	FileID      string                 `json:"file_id"`
	ContentHash string                 `json:"content_hash,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// New 创建事件
func New(eventType, fileID, hash string, data map[string]interface{}) Event {
	return Event{
		Type:        eventType,
		FileID:      fileID,
		ContentHash: hash,
		Data:        data,
		Timestamp:   time.Now().Unix(),
	}
}

// Publisher 事件发布者，发布失败由调用方记录日志，不影响主流程
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher 未配置消息队列时使用，仅在开发模式输出
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	utils.LogIfDevf("[Events] %s", body)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Emit 尽力发布，失败只记日志
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Printf("[Events] publish %s for %s failed: %v", event.Type, event.FileID, err)
	}
}
