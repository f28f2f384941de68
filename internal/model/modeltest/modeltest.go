// Package modeltest 测试用的 sqlite 内存库
package modeltest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tokmz/advisor/internal/model"
	"github.com/tokmz/advisor/pkg/orm"
)

// Open 打开以测试名命名的共享内存库并完成迁移，测试结束时关闭
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := orm.DefaultConfig()
	cfg.DSN = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	cfg.LogLevel = "silent"
	cfg.MaxOpenConns = 1

	db, err := orm.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })
	require.NoError(t, model.Migrate(db))
	return db
}
