package xun_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/xun"
)

type stubDriver struct{}

func (stubDriver) Run(ctx context.Context, bp *blueprint.Blueprint, st store.Store) (any, error) {
	return nil, nil
}

func TestBindEnvironmentThenBoundEnvironmentRoundTrips(t *testing.T) {
	xun.ResetEnvironment()
	t.Cleanup(xun.ResetEnvironment)

	env := &xun.Environment{Driver: stubDriver{}, Store: store.NewMemory()}
	xun.BindEnvironment(env)

	got, ok := xun.BoundEnvironment()
	require.True(t, ok)
	assert.Same(t, env, got)
}

func TestBoundEnvironmentReportsNotOkBeforeAnyBind(t *testing.T) {
	xun.ResetEnvironment()
	t.Cleanup(xun.ResetEnvironment)

	_, ok := xun.BoundEnvironment()
	assert.False(t, ok)
}

func TestBindEnvironmentTwicePanics(t *testing.T) {
	xun.ResetEnvironment()
	t.Cleanup(xun.ResetEnvironment)

	xun.BindEnvironment(&xun.Environment{Driver: stubDriver{}, Store: store.NewMemory()})
	assert.Panics(t, func() {
		xun.BindEnvironment(&xun.Environment{Driver: stubDriver{}, Store: store.NewMemory()})
	})
}

func TestResetEnvironmentAllowsRebinding(t *testing.T) {
	xun.ResetEnvironment()
	t.Cleanup(xun.ResetEnvironment)

	xun.BindEnvironment(&xun.Environment{Driver: stubDriver{}, Store: store.NewMemory()})
	xun.ResetEnvironment()

	assert.NotPanics(t, func() {
		xun.BindEnvironment(&xun.Environment{Driver: stubDriver{}, Store: store.NewMemory()})
	})
}
