package workers

import (
	"collab-lab/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdleSweepWorker_SweepsOnEveryTick(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)

	// Given a registry holding one idle session
	swept := make(chan struct{}, 8)
	registry.EXPECT().
		SweepIdle(gomock.Any(), time.Hour).
		DoAndReturn(func(context.Context, time.Duration) []string {
			swept <- struct{}{}
			return []string{"s1"}
		}).
		MinTimes(2)

	worker := NewIdleSweepWorker(log, registry, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// When the worker runs for a few intervals
	go func() { done <- worker.Run(ctx) }()
	for range 2 {
		select {
		case <-swept:
		case <-time.After(time.Second):
			req.FailNow("registry was not swept")
		}
	}

	// Then it stops with the context
	cancel()
	req.ErrorIs(<-done, context.Canceled)
}
