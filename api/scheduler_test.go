package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRefreshScheduler_RunNow(t *testing.T) {
	// GIVEN: A feed over a seeded store
	s := newTestServer(t)
	seedPortfolio(t, s.store)
	core, logs := observer.New(zapcore.InfoLevel)

	rs, err := NewRefreshScheduler(s.handler.Feed, "*/5 * * * *", zap.New(core))
	require.NoError(t, err)

	// WHEN: Running a refresh by hand
	run := rs.RunNow(context.Background())

	// THEN: The feed has a new snapshot and the run is recorded
	require.NoError(t, run.Err)
	assert.Equal(t, uint64(1), run.Generation)
	assert.Equal(t, 5, run.Events)
	assert.Equal(t, run, rs.LastRun())

	snap, ok := s.handler.Feed.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, 1, logs.FilterMessage("scheduled refresh").Len())
}

func TestRefreshScheduler_RecordsFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.FailOn(property.SourceInspections, errors.New("timeout"))
	core, logs := observer.New(zapcore.InfoLevel)

	rs, err := NewRefreshScheduler(s.handler.Feed, "@hourly", zap.New(core))
	require.NoError(t, err)

	run := rs.RunNow(context.Background())

	require.Error(t, run.Err)
	assert.Zero(t, run.Generation)
	assert.Equal(t, 1, logs.FilterMessage("scheduled refresh failed").Len())
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	s := newTestServer(t)

	rs, err := NewRefreshScheduler(s.handler.Feed, "0 3 * * *", nil)
	require.NoError(t, err)

	assert.True(t, rs.NextRun().IsZero())
	rs.Start()
	assert.False(t, rs.NextRun().IsZero())
	rs.Stop()
	rs.Stop()
}

func TestRefreshScheduler_InvalidSpec(t *testing.T) {
	s := newTestServer(t)

	_, err := NewRefreshScheduler(s.handler.Feed, "every now and then", nil)

	assert.Error(t, err)
}
