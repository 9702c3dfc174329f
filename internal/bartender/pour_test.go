package bartender

import (
	"errors"
	"sync"
	"testing"
	"time"

	"smart_bartender/internal/hardware"
	"smart_bartender/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPour_DecrementsExactlyAndReportsMaxDuration(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	res, err := f.c.Pour("Screwdriver")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 100*time.Millisecond, res.Duration)
	assert.InDelta(t, 0.1, res.DurationSeconds(), 1e-9)
	require.Len(t, res.Channels, 2)
	for _, ch := range res.Channels {
		assert.Equal(t, models.OutcomeSuccess, ch.Outcome)
		assert.Equal(t, ch.RequestedML, ch.DispensedML)
	}

	assert.Equal(t, 350.0, f.volume(t, 1))
	assert.Equal(t, 300.0, f.volume(t, 3))
	assert.False(t, f.c.Status().Pouring)
	assert.Nil(t, f.c.Status().CurrentDrink)

	// a second pour books again
	_, err = f.c.Pour("Screwdriver")
	require.NoError(t, err)
	assert.Equal(t, 300.0, f.volume(t, 1))
	assert.Equal(t, 200.0, f.volume(t, 3))
	assert.Equal(t, 200.0, f.levels.saved[3])
	assert.False(t, f.sim.AnyOn())
}

func TestPour_DrivesValveAndPumpPerChannel(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	_, err := f.c.Pour("Screwdriver")
	require.NoError(t, err)

	for _, l := range []hardware.Line{hardware.Valve(1), hardware.Pump(1), hardware.Valve(3), hardware.Pump(3)} {
		calls := f.sim.CallsFor(l)
		require.Len(t, calls, 2, l.String())
		assert.True(t, calls[0].On)
		assert.False(t, calls[1].On)
	}
	assert.Empty(t, f.sim.CallsFor(hardware.Valve(2)))
	assert.Empty(t, f.sim.CallsFor(hardware.Valve(4)))

	// channels run in parallel: reservoir 3 opened before reservoir 1 closed
	v1 := f.sim.CallsFor(hardware.Valve(1))
	v3 := f.sim.CallsFor(hardware.Valve(3))
	assert.True(t, v3[0].At.Before(v1[1].At))
	assert.GreaterOrEqual(t, v3[1].At.Sub(v3[0].At), 100*time.Millisecond)
}

func TestPour_ValveOnlyWhenPumpDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.PourWithPump = false
	f := newFixture(t, cfg, nil)

	_, err := f.c.Pour("Screwdriver")
	require.NoError(t, err)
	assert.Len(t, f.sim.CallsFor(hardware.Valve(1)), 2)
	assert.Empty(t, f.sim.CallsFor(hardware.Pump(1)))
}

func TestPour_ConcurrentCallsOnlyOneWins(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	const n = 8
	start := make(chan struct{})
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.c.Pour("Screwdriver")
		}()
	}
	close(start)
	wg.Wait()

	ok, busy := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, busy)
	assert.Equal(t, 350.0, f.volume(t, 1))
	assert.False(t, f.c.Status().Pouring)
}

func TestStartPour_BusyWhileRunning(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	acc, err := f.c.StartPour("Slow Vodka")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRunning, acc.Outcome)
	assert.NotEmpty(t, acc.JobID)
	assert.Equal(t, 250*time.Millisecond, acc.Duration)

	st := f.c.Status()
	require.True(t, st.Pouring)
	require.NotNil(t, st.CurrentDrink)
	assert.Equal(t, "Slow Vodka", *st.CurrentDrink)

	_, err = f.c.Pour("Rum Punch")
	assert.ErrorIs(t, err, ErrBusy)

	require.Eventually(t, func() bool { return !f.c.Status().Pouring }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 150.0, f.volume(t, 1))
}

func TestPour_UnknownRecipeHasNoSideEffects(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	_, err := f.c.Pour("Five Alive")
	assert.ErrorIs(t, err, ErrUnknownRecipe)
	_, err = f.c.Pour("Long Island")
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	assert.Empty(t, f.sim.Calls())
	assert.False(t, f.c.Status().Pouring)
	assert.NotContains(t, f.c.ListRecipes(), "Five Alive")
}

func TestPour_InsufficientVolumeHasNoSideEffects(t *testing.T) {
	f := newFixture(t, testConfig(), map[int]float64{1: 20})

	_, err := f.c.Pour("Screwdriver")
	assert.ErrorIs(t, err, ErrInsufficientVolume)
	assert.Empty(t, f.sim.Calls())
	assert.False(t, f.c.Status().Pouring)
	assert.Equal(t, 20.0, f.volume(t, 1))
}

func TestPour_ClampedAtMaxPour(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPour = 80 * time.Millisecond
	f := newFixture(t, cfg, nil)

	res, err := f.c.Pour("Slow Vodka")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, models.OutcomeDegraded, res.Outcome)
	assert.Equal(t, cfg.MaxPour, res.Duration)

	require.Len(t, res.Channels, 1)
	ch := res.Channels[0]
	assert.Equal(t, models.OutcomeTimeout, ch.Outcome)
	assert.GreaterOrEqual(t, ch.DispensedML, 80.0)
	assert.LessOrEqual(t, ch.DispensedML, 250.0)
	assert.Equal(t, 400-ch.DispensedML, f.volume(t, 1))

	calls := f.sim.CallsFor(hardware.Valve(1))
	require.Len(t, calls, 2)
	open := calls[1].At.Sub(calls[0].At)
	assert.GreaterOrEqual(t, open, cfg.MaxPour)
	assert.Less(t, open, cfg.MaxPour+60*time.Millisecond)
}

func TestPour_HardwareFaultDegradesOnlyThatChannel(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.sim.FailOutput(hardware.Valve(3), errors.New("relay stuck"))

	res, err := f.c.Pour("Screwdriver")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHardwareFault)
	assert.Equal(t, models.OutcomeDegraded, res.Outcome)

	byID := map[int]models.ChannelResult{}
	for _, ch := range res.Channels {
		byID[ch.Reservoir] = ch
	}
	assert.Equal(t, models.OutcomeSuccess, byID[1].Outcome)
	assert.Equal(t, models.OutcomeFault, byID[3].Outcome)
	assert.NotEmpty(t, byID[3].Error)
	assert.Zero(t, byID[3].DispensedML)

	assert.Equal(t, 350.0, f.volume(t, 1))
	assert.Equal(t, 400.0, f.volume(t, 3))
	assert.False(t, f.c.Status().Pouring)
	assert.False(t, f.sim.AnyOn())
}

func TestPour_ReleaseFaultStillClearsSlot(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	go func() {
		time.Sleep(40 * time.Millisecond)
		f.sim.FailOutput(hardware.Pump(3), errors.New("driver gone"))
	}()
	res, err := f.c.Pour("Screwdriver")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHardwareFault)
	assert.Equal(t, models.OutcomeDegraded, res.Outcome)
	assert.False(t, f.c.Status().Pouring)

	// the release failed, so the rate-derived amount is booked
	assert.InDelta(t, 300.0, f.volume(t, 3), 20)
}

func TestPour_ScrewdriverTriggersBothRefills(t *testing.T) {
	f := newFixture(t, testConfig(), map[int]float64{1: 120, 3: 150})
	f.sim.SetFull(1, false)
	f.sim.SetFull(3, false)

	_, err := f.c.Pour("Screwdriver")
	require.NoError(t, err)

	assert.Equal(t, 70.0, f.volume(t, 1))
	assert.Equal(t, 50.0, f.volume(t, 3))
	st := f.c.Status()
	assert.True(t, st.Refilling["1"])
	assert.True(t, st.Refilling["3"])
	assert.False(t, st.Refilling["2"])
	assert.False(t, st.Pouring)

	require.Eventually(t, func() bool {
		return f.sim.IsOn(hardware.Pump(1)) && f.sim.IsOn(hardware.Pump(3))
	}, time.Second, 2*time.Millisecond)

	f.sim.SetFull(1, true)
	f.sim.SetFull(3, true)
	require.Eventually(t, func() bool {
		return !f.refilling(t, 1) && !f.refilling(t, 3)
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 400.0, f.volume(t, 1))
	assert.Equal(t, 400.0, f.volume(t, 3))
	assert.False(t, f.sim.AnyOn())
}

func TestPour_EventsAndMetrics(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	_, err := f.c.Pour("Rum Punch")
	require.NoError(t, err)

	types := f.events.types()
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, models.EventPourStarted, types[0])
	assert.Contains(t, types, models.EventPourFinished)

	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	assert.Equal(t, 1, f.metrics.pours[models.OutcomeSuccess])
	assert.Equal(t, 350.0, f.metrics.volumes[2])
}

func TestDispensed(t *testing.T) {
	assert.Equal(t, 50.0, dispensed(models.OutcomeSuccess, 50, 10*time.Millisecond, 8))
	assert.Equal(t, 0.0, dispensed(models.OutcomeFault, 50, 0, 8))
	assert.Equal(t, 16.0, dispensed(models.OutcomeStopped, 50, 2*time.Second, 8))
	assert.Equal(t, 50.0, dispensed(models.OutcomeTimeout, 50, 30*time.Second, 8))
}
