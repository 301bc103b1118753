package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAfterCommitRunsAtOnceOutsideTransaction(t *testing.T) {
	ran := false

	AfterCommit(context.Background(), func(ctx context.Context) { ran = true })

	assert.True(t, ran)
}

func TestAfterCommitWaitsForRun(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())
	var order []string

	AfterCommit(ctx, func(ctx context.Context) { order = append(order, "index") })
	AfterCommit(ctx, func(ctx context.Context) { order = append(order, "notify") })
	assert.Empty(t, order)

	hooks.Run(context.Background())
	assert.Equal(t, []string{"index", "notify"}, order)

	hooks.Run(context.Background())
	assert.Len(t, order, 2)
}

func TestAfterCommitDroppedWithoutRun(t *testing.T) {
	ctx, _ := WithCommitHooks(context.Background())
	ran := false

	AfterCommit(ctx, func(ctx context.Context) { ran = true })

	assert.False(t, ran)
}
