// Package testutil holds helpers shared by tests.
package testutil

import (
	"context"
	"testing"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger returns a logger that writes to the test log.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
}

// Context returns a context carrying a test logger, canceled on cleanup.
func Context(t testing.TB) context.Context {
	ctx := context.Background()
	ctx, cf := context.WithCancel(ctx)
	t.Cleanup(cf)
	ctx = logctx.NewContext(ctx, Logger(t))
	return ctx
}
