package celer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
)

func TestMapCache(t *testing.T) {
	ctx := context.Background()
	c := celer.NewMapCache()

	b, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	b, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	b, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, c.Set(ctx, "ttl", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	b, err = c.Get(ctx, "ttl")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Clear(ctx))
	b, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, b)
}
