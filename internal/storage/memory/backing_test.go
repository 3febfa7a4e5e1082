package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophdate-session/internal/model"
)

func TestBacking_WriteReadClear(t *testing.T) {
	ctx := context.Background()
	b := New("durable")
	assert.Equal(t, "durable", b.Name())

	rec := model.Record{AuthToken: "a", RefreshToken: "r", User: `{"id":"u1"}`, UserID: "u1"}
	require.NoError(t, b.Write(ctx, rec))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Clear(ctx))

	got, err = b.Read(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
