package housekeeping

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
)

// Presence 实时在线查询
type Presence interface {
	IsOnline(userID string) bool
}

// ReconcilePresence 将库中标记为 online 但已无活跃会话的用户改为 offline
//
// 进程崩溃或事件丢失后持久化状态会与连接管理器脱节，该任务负责收敛
func ReconcilePresence(db *gorm.DB, presence Presence, now func() time.Time) func(ctx context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		var ids []string
		err := db.WithContext(ctx).Model(&model.User{}).
			Where("status = ?", model.StatusOnline).
			Pluck("user_id", &ids).Error
		if err != nil {
			return err
		}

		stale := ids[:0]
		for _, id := range ids {
			if !presence.IsOnline(id) {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			return nil
		}

		return db.WithContext(ctx).Model(&model.User{}).
			Where("user_id IN ? AND status = ?", stale, model.StatusOnline).
			Updates(map[string]any{
				"status":        model.StatusOffline,
				"last_activity": now().UTC(),
			}).Error
	}
}
