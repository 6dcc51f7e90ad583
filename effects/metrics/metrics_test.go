package metrics_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Env = any

func TestSupervisor_CountsFibersByExit(t *testing.T) {
	reg := prometheus.NewRegistry()
	sv, err := metrics.NewSupervisor(reg, metrics.Config{Namespace: "test"})
	require.NoError(t, err)

	rt := effects.NewRuntime(effects.RuntimeConfig{NumWorkers: 2, Supervisor: sv})
	t.Cleanup(rt.Close)

	eff := effects.ZipPar(effects.Succeed[Env, string](1), effects.Fail[Env, string, int]("e"))
	exit := effects.Run(context.Background(), rt, eff)
	require.True(t, exit.IsFailure())

	assert.InDelta(t, 3, testutil.ToFloat64(sv.StartedCounter("false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(sv.CompletedCounter("success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(sv.CompletedCounter("failure")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(sv.LiveGauge()), 0)

	count, err := testutil.GatherAndCount(reg, "test_fiber_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per exit kind")
}

func TestSupervisor_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewSupervisor(reg, metrics.Config{})
	require.NoError(t, err)

	_, err = metrics.NewSupervisor(reg, metrics.Config{})
	assert.Error(t, err)
}
