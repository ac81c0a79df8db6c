// Package access 下载访问判定
//
// 谁能查看一个文件由外部的隐私决策服务决定，这里只定义资产存储调用的接口
// 以及两个本地实现。
package access

import (
	"context"

	"github.com/anoixa/asset-store/database/models"
)

// Request 访问上下文
type Request struct {
	ViewerID string // 可为空，表示匿名
	Variant  string
}

// Gate 判断 viewer 能否访问非公开文件，返回值视为权威结果
type Gate interface {
	CanAccess(ctx context.Context, file *models.File, req Request) (bool, error)
}

// GateFunc 函数适配器
type GateFunc func(ctx context.Context, file *models.File, req Request) (bool, error)

func (f GateFunc) CanAccess(ctx context.Context, file *models.File, req Request) (bool, error) {
	return f(ctx, file, req)
}

// OwnerGate 只允许上传者访问，未接入外部决策服务时的默认实现
// unlisted 文件凭链接即可访问
type OwnerGate struct{}

func (OwnerGate) CanAccess(_ context.Context, file *models.File, req Request) (bool, error) {
	switch file.Visibility {
	case models.VisibilityPublic, models.VisibilityUnlisted:
		return true, nil
	}
	return req.ViewerID != "" && req.ViewerID == file.OwnerID, nil
}

// AllowAll 全部放行，供运维命令 url 使用
type AllowAll struct{}

func (AllowAll) CanAccess(context.Context, *models.File, Request) (bool, error) {
	return true, nil
}
