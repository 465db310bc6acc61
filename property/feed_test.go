package property_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"github.com/warp/property-engine/property/store"
)

// gatedSource blocks the first Leases call until release is closed.
type gatedSource struct {
	*store.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) Leases(ctx context.Context, q property.Query) ([]property.Lease, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Leases(ctx, q)
}

func TestFeed_SupersededRefreshIsDiscarded(t *testing.T) {
	// GIVEN: A refresh stuck in its fetch
	m := seededStore(t)
	src := &gatedSource{Memory: m, entered: make(chan struct{}), release: make(chan struct{})}
	feed := property.NewFeed(property.NewCalendar(src, m, property.Options{Clock: calendar.FixedClock(testNow)}), nil)

	stale := make(chan error, 1)
	go func() {
		_, err := feed.Refresh(context.Background(), calendar.Filters{PropertyIDs: []string{"p1"}})
		stale <- err
	}()
	<-src.entered

	// WHEN: A newer refresh completes first, then the stale one finishes
	fresh, err := feed.Refresh(context.Background(), calendar.Filters{PropertyIDs: []string{"p2"}})
	require.NoError(t, err)
	close(src.release)

	// THEN: The stale result is dropped and never replaces the fresh snapshot
	select {
	case err := <-stale:
		assert.ErrorIs(t, err, calendar.ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("stale refresh never returned")
	}

	current, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, fresh.Generation, current.Generation)
	assert.Equal(t, uint64(2), current.Generation)
	assert.Equal(t, []string{"p2"}, current.Filters.PropertyIDs)
}

func TestFeed_ChangeTriggersFullRebuild(t *testing.T) {
	// GIVEN: A feed subscribed to the store's change bus
	bus := property.NewBus(nil)
	m := seededStore(t).WithBus(bus)
	cal := newCalendar(m)
	feed := property.NewFeed(cal, nil)
	bus.Subscribe(feed.OnChange)

	_, err := feed.Refresh(context.Background(), calendar.Filters{})
	require.NoError(t, err)
	before, _ := feed.Current()

	// WHEN: A custom event is created
	_, err = m.CreateCustomEvent(context.Background(), property.CustomEvent{
		ID: "c9", Title: "Boiler inspection call", Date: calendar.MustParseDate("2024-06-21"),
	})
	require.NoError(t, err)

	// THEN: The feed rebuilt with the same filters and includes it
	after, ok := feed.Current()
	require.True(t, ok)
	assert.Greater(t, after.Generation, before.Generation)
	assert.Contains(t, idsOf(after.Events), "custom_c9")
	assert.Len(t, after.Events, len(before.Events)+1)
}

func TestFeed_FailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	m := seededStore(t)
	feed := property.NewFeed(newCalendar(m), nil)

	first, err := feed.Refresh(context.Background(), calendar.Filters{})
	require.NoError(t, err)

	m.FailOn(property.SourceLeases, errors.New("timeout"))
	_, err = feed.Reload(context.Background())
	assert.ErrorIs(t, err, calendar.ErrUpstreamFetch)

	current, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, first.Generation, current.Generation)
}

func TestBus_HandlerErrorsJoinedAndOthersStillRun(t *testing.T) {
	bus := property.NewBus(nil)
	boom := errors.New("boom")
	var calls []string

	bus.Subscribe(func(_ context.Context, ch property.Change) error {
		calls = append(calls, "first:"+ch.ID)
		return boom
	})
	bus.Subscribe(func(_ context.Context, ch property.Change) error {
		calls = append(calls, "second:"+ch.ID)
		return nil
	})

	err := bus.Publish(context.Background(), property.Change{Op: property.ChangeUpdated, ID: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:x", "second:x"}, calls)

	bus.Close()
	assert.NoError(t, bus.Publish(context.Background(), property.Change{ID: "y"}))
	assert.Len(t, calls, 2)
}
