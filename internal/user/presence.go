package user

import (
	"context"

	"github.com/tokmz/advisor/pkg/ws"
)

// Subscribe 订阅会话事件，建立与关闭时同步持久化状态
func (s *Service) Subscribe(m *ws.Manager) {
	sync := func(ev ws.Event) {
		s.SyncPresence(context.Background(), ev.UserID, ev.Time)
	}
	m.Subscribe(ws.EventSessionOpened, sync)
	m.Subscribe(ws.EventSessionClosed, sync)
}
