package testhelpers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/anoixa/asset-store/internal/events"
)

// MockPublisher 基于 testify mock 的事件发布者
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}

// Types 按调用顺序返回已发布的事件类型
func (m *MockPublisher) Types() []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		types = append(types, call.Arguments.Get(1).(events.Event).Type)
	}
	return types
}
