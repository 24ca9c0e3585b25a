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
	gormLogger "gorm.io/gorm/logger"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestGormTrace(t *testing.T) {
	l, logs := observed()
	g := l.Gorm(10 * time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	g.Trace(ctx, time.Now(), stmt, nil)
	assert.Equal(t, 0, logs.Len(), "fast statements are not logged at warn level")

	g.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	slow := logs.FilterMessage("slow statement").All()
	if assert.Len(t, slow, 1) {
		assert.Equal(t, zapcore.WarnLevel, slow[0].Level)
		assert.Equal(t, "gorm", slow[0].ContextMap()["component"])
	}

	g.Trace(ctx, time.Now(), stmt, gormLogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.FilterMessage("gorm statement failed").Len())
	g.Trace(ctx, time.Now(), stmt, errors.New("UNIQUE constraint failed"))
	assert.Equal(t, 1, logs.FilterMessage("gorm statement failed").Len())

	g.LogMode(gormLogger.Silent).Trace(ctx, time.Now().Add(-time.Second), stmt, errors.New("x"))
	assert.Equal(t, 2, logs.Len())
}

func TestWith(t *testing.T) {
	l, logs := observed()
	l.With("repo", "OutlookRepo").Info("created", "id", 7)
	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "OutlookRepo", entries[0].ContextMap()["repo"])
		assert.Equal(t, int64(7), entries[0].ContextMap()["id"])
	}
}
