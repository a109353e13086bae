package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return `SELECT * FROM "leads" WHERE tenant_id = 'org_a'`, 2 }

	t.Run("errors are logged with tenant", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, 0)
		ctx := WithSession(context.Background(), "s1", "org_a")

		gl.Trace(ctx, time.Now(), sql, errors.New("connection reset"))

		entries := recorded.FilterMessage("SQL error").All()
		assert.Len(t, entries, 1)
		assert.Equal(t, "org_a", entries[0].ContextMap()["tenant_id"])
	})

	t.Run("record not found is silent", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

		gl.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)

		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("slow query warns", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, time.Millisecond)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

		assert.Equal(t, 1, recorded.FilterMessage("Slow SQL").Len())
	})

	t.Run("silent mode", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info, 0).LogMode(gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), sql, errors.New("x"))
		gl.Info(context.Background(), "hello %s", "x")

		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("info logs queries at debug", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info, 0)

		gl.Trace(context.Background(), time.Now(), sql, nil)

		entries := recorded.FilterMessage("SQL").All()
		assert.Len(t, entries, 1)
		assert.Equal(t, int64(2), entries[0].ContextMap()["rows"])
	})
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("anything"))
}
