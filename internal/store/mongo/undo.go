package mongo

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// undoLog records compensating steps for writes made inside Atomic. On
// failure the steps run newest first. Only inserts and created collections
// are recorded; updates and drops are not reversible here.
type undoLog struct {
	mu    sync.Mutex
	steps []undoStep
}

type undoStep struct {
	what string
	fn   func(ctx context.Context) error
}

func (u *undoLog) push(what string, fn func(ctx context.Context) error) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.steps = append(u.steps, undoStep{what: what, fn: fn})
}

func (u *undoLog) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	u.mu.Lock()
	steps := u.steps
	u.steps = nil
	u.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].fn(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("step", steps[i].what).Msg("failed to undo mongo write")
		}
	}
}
