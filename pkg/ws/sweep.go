package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SweepResult 一次清理的结果
type SweepResult struct {
	TypingCleared   int
	SessionsExpired int
}

// runSweep 按固定间隔执行清理，直到 ctx 结束
func (m *Manager) runSweep(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep 清理过期输入状态与不活跃会话
//
// 单次清理中的 panic 会被记录并吞掉，不影响后续周期。
func (m *Manager) Sweep() (result SweepResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("sweep iteration failed",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	for _, e := range m.typing.expired(now.Add(-m.config.TypingTimeout)) {
		// 前面的广播可能已触发断开并清掉该条目
		if !m.typing.clear(e.roomID, e.userID) {
			continue
		}
		result.TypingCleared++

		s, ok := m.sessions[e.userID]
		if !ok {
			continue
		}
		if s.typingIn == e.roomID {
			s.typingIn = ""
		}
		m.broadcastTypingLocked(s, e.roomID, false)
	}

	deadline := now.Add(-m.config.SessionTimeout)
	for _, userID := range sortedKeys(m.sessions) {
		s, ok := m.sessions[userID]
		if !ok || s.closing {
			continue
		}
		if s.lastActivity.Before(deadline) {
			result.SessionsExpired++
			m.disconnectLocked(s, websocket.CloseNormalClosure, "Session timeout")
		}
	}

	if result.TypingCleared > 0 {
		m.metrics.IncrementSweepExpired("typing", result.TypingCleared)
	}
	if result.SessionsExpired > 0 {
		m.metrics.IncrementSweepExpired("session", result.SessionsExpired)
		m.logger.Info("expired inactive sessions", zap.Int("count", result.SessionsExpired))
	}

	return result
}
