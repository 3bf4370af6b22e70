package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("gmart-backend", "test", true)
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = New("gmart-backend", "test", false)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core)
	fallback := zap.NewNop()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithLogger(context.Background(), scoped)
	FromContext(ctx, fallback).Info("hello")
	assert.Equal(t, 1, logs.Len())

	assert.Equal(t, ctx, WithLogger(ctx, nil))
}
