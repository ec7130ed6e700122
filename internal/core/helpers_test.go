package core

import (
	"context"

	"go.uber.org/zap"
)

func contextBackground() context.Context { return context.Background() }

func testLogger() *zap.Logger { return zap.NewNop() }
