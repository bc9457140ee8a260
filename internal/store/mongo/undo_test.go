package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUndoLogRollback(t *testing.T) {
	var ran []string
	u := &undoLog{}
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}

	u.push("first", step("first", nil))
	u.push("second", step("second", errors.New("boom")))
	u.push("third", step("third", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u.rollback(ctx)

	assert.Equal(t, []string{"third", "second", "first"}, ran)

	ran = nil
	u.rollback(context.Background())
	assert.Empty(t, ran, "steps run once")
}

func TestUndoLogNilIsNoop(t *testing.T) {
	var u *undoLog
	assert.NotPanics(t, func() {
		u.push("x", func(context.Context) error { return nil })
	})
}
