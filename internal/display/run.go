package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownGrace = 3 * time.Second

var errTaskAbandoned = errors.New("pipeline did not stop within the shutdown grace period")

// runGroup runs a surface loop and a task as one group. The task's
// context ends when the surface loop returns; the task then has grace to
// finish before it is abandoned. finished sees the task's outcome exactly
// once and may be called while the surface is still running.
func runGroup(parent context.Context, loop func(ctx context.Context) error, task Task, grace time.Duration, logger *zap.Logger, finished func(error)) error {
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	taskCtx, stopTask := context.WithCancel(parent)
	defer stopTask()

	loopDone := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(loopDone)
		defer stopTask()
		return loop(parent)
	})
	g.Go(func() error {
		result := make(chan error, 1)
		go func() { result <- callTask(taskCtx, task) }()

		var err error
		select {
		case err = <-result:
		case <-loopDone:
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case err = <-result:
			case <-timer.C:
				err = errTaskAbandoned
				logger.Warn("pipeline abandoned", zap.Duration("grace", grace))
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline task failed", zap.Error(err))
		}
		if finished != nil {
			finished(err)
		}
		return nil
	})
	return g.Wait()
}

func callTask(ctx context.Context, task Task) (err error) {
	if task == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return task(ctx)
}
