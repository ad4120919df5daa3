package valve

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/logic"
)

type recorder struct {
	notices []logic.Notice
}

func (r *recorder) Notify(n logic.Notice) { r.notices = append(r.notices, n) }

func (r *recorder) last() logic.Notice {
	if len(r.notices) == 0 {
		return logic.NoticeNone
	}
	return r.notices[len(r.notices)-1]
}

type rig struct {
	clock  *FakeClock
	bridge *gpio.FakeBridge
	adc    *gpio.FakeADC
	gov    *logic.Governor
	notes  *recorder
	ctrl   *Controller
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 1, 10, hour, minute, 0, 0, time.UTC)
}

// newRig builds a controller with a 12 V supply, a 6 V valve and a
// 10:00-23:00 window, already through Begin.
func newRig(t *testing.T, start time.Time, maxOpen time.Duration) *rig {
	t.Helper()
	r := &rig{
		clock:  NewFakeClock(start),
		bridge: gpio.NewFakeBridge(),
		adc:    gpio.NewFakeADC(1000),
		notes:  &recorder{},
	}
	window, err := logic.ParseWindow("10:00", "23:00")
	require.NoError(t, err)
	r.gov = logic.NewGovernor(logic.GovernorConfig{MaxTotalOpen: maxOpen, Window: window})

	s := NewSampler(r.adc, r.clock, SamplerConfig{TargetVolts: 6, DividerRatio: 12})
	act := NewActuator(r.bridge, s, r.clock, ActuatorConfig{
		TimeToOpen:  2 * time.Second,
		TimeToClose: 3 * time.Second,
	})
	r.ctrl = NewController(act, r.gov, r.clock, r.notes)
	require.NoError(t, r.ctrl.Begin())
	r.bridge.Reset()
	return r
}

func TestBeginForcesClose(t *testing.T) {
	clock := NewFakeClock(at(12, 0))
	bridge := gpio.NewFakeBridge()
	notes := &recorder{}
	s := NewSampler(gpio.NewFakeADC(1000), clock, SamplerConfig{TargetVolts: 6, DividerRatio: 12})
	act := NewActuator(bridge, s, clock, ActuatorConfig{TimeToOpen: time.Second, TimeToClose: time.Second})
	c := NewController(act, logic.NewGovernor(logic.GovernorConfig{}), clock, notes)

	require.NoError(t, c.Begin())

	assert.Equal(t, PWMFrequencyHz, bridge.FreqHz)
	assert.Equal(t, []gpio.Drive{{IN1: 0, IN2: 0}, {IN1: 128, IN2: 0}, {IN1: 0, IN2: 0}}, bridge.History())
	assert.False(t, c.IsOpen())
	assert.Equal(t, []logic.Notice{logic.NoticeInitializing, logic.NoticeReady}, notes.notices)
}

func TestBeginConfigureError(t *testing.T) {
	clock := NewFakeClock(at(12, 0))
	bridge := gpio.NewFakeBridge()
	bridge.ConfigureError = errors.New("no pwm")
	s := NewSampler(gpio.NewFakeADC(1000), clock, SamplerConfig{TargetVolts: 6, DividerRatio: 12})
	c := NewController(NewActuator(bridge, s, clock, ActuatorConfig{}), logic.NewGovernor(logic.GovernorConfig{}), clock, nil)

	err := c.Begin()
	require.Error(t, err)
	assert.ErrorContains(t, err, "no pwm")
}

func TestOpenAndCloseDriveDirections(t *testing.T) {
	r := newRig(t, at(12, 0), 0)

	assert.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	assert.True(t, r.ctrl.IsOpen())
	assert.Equal(t, []gpio.Drive{{IN1: 0, IN2: 128}, {IN1: 0, IN2: 0}}, r.bridge.History())
	assert.Equal(t, logic.NoticeValveOpened, r.notes.last())

	r.bridge.Reset()
	assert.Equal(t, OutcomeClosed, r.ctrl.Request(false))
	assert.False(t, r.ctrl.IsOpen())
	assert.Equal(t, []gpio.Drive{{IN1: 128, IN2: 0}, {IN1: 0, IN2: 0}}, r.bridge.History())
	assert.Equal(t, Idle, r.ctrl.Snapshot().Bridge)
}

func TestRequestIsIdempotent(t *testing.T) {
	r := newRig(t, at(12, 0), 0)

	assert.Equal(t, OutcomeNoop, r.ctrl.Request(false))
	assert.Empty(t, r.bridge.History())

	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	n := len(r.bridge.History())
	before := r.ctrl.Snapshot()
	assert.Equal(t, OutcomeNoop, r.ctrl.Request(true))
	assert.Len(t, r.bridge.History(), n)
	assert.Equal(t, before.Safety, r.ctrl.Snapshot().Safety)
}

func TestCumulativeTimeIsSumOfIntervals(t *testing.T) {
	r := newRig(t, at(12, 0), 0)

	var want time.Duration
	for _, hold := range []time.Duration{10 * time.Minute, 25 * time.Minute} {
		require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
		opened := r.clock.Now()
		r.clock.Advance(hold)
		require.Equal(t, OutcomeClosed, r.ctrl.Request(false))
		want += r.clock.Now().Sub(opened)
	}

	snap := r.ctrl.Snapshot()
	assert.Equal(t, want, snap.Safety.CumulativeOpen)
	assert.False(t, snap.Safety.LimitActive)
	assert.Equal(t, 2, snap.Opens)
	assert.Equal(t, 2, snap.Closes)
}

func TestLimitTripForcesClose(t *testing.T) {
	r := newRig(t, at(12, 0), time.Hour)

	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	r.clock.Advance(time.Hour)

	res := r.ctrl.Tick()
	assert.True(t, res.ForceClose)
	assert.Equal(t, logic.CloseLimit, res.Reason)
	assert.False(t, r.ctrl.IsOpen())
	assert.Equal(t, logic.NoticeLimitExceeded, r.notes.last())

	snap := r.ctrl.Snapshot()
	assert.True(t, snap.Safety.LimitActive)
	assert.Equal(t, time.Hour, snap.Safety.CumulativeOpen)

	r.bridge.Reset()
	assert.Equal(t, OutcomeDenied, r.ctrl.Request(true))
	assert.Equal(t, logic.NoticeLimitInhibit, r.notes.last())
	assert.Empty(t, r.bridge.History())
}

func TestScheduleDeniesOpen(t *testing.T) {
	r := newRig(t, at(3, 0), 0)

	assert.Equal(t, OutcomeDenied, r.ctrl.Request(true))
	assert.False(t, r.ctrl.IsOpen())
	assert.Empty(t, r.bridge.History())
	assert.Equal(t, logic.NoticeScheduleInhibit, r.notes.last())

	snap := r.ctrl.Snapshot()
	assert.Equal(t, logic.DenySchedule, snap.LastDenial)
	assert.Equal(t, 1, snap.Denials)
}

func TestScheduleFailsOpenWithoutClock(t *testing.T) {
	r := newRig(t, time.Date(1970, 1, 1, 3, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, OutcomeOpened, r.ctrl.Request(true))
}

func TestWindowEndForcesClose(t *testing.T) {
	r := newRig(t, at(22, 50), 0)

	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	assert.False(t, r.ctrl.Tick().ForceClose)

	r.clock.Set(at(23, 5))
	res := r.ctrl.Tick()
	assert.Equal(t, logic.CloseSchedule, res.Reason)
	assert.False(t, r.ctrl.IsOpen())
	assert.Equal(t, logic.NoticeScheduleClosed, r.notes.last())
	assert.False(t, r.ctrl.Snapshot().Safety.LimitActive)
}

func TestLimitResetsAfterInhibition(t *testing.T) {
	r := newRig(t, at(21, 0), time.Hour)

	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	r.clock.Advance(time.Hour)
	r.ctrl.Tick()
	require.True(t, r.ctrl.Snapshot().Safety.LimitActive)

	r.clock.Set(at(23, 30))
	assert.True(t, r.ctrl.Tick().InhibitStarted)

	r.clock.Set(at(23, 59))
	assert.False(t, r.ctrl.Tick().LimitReset)
	assert.True(t, r.ctrl.Snapshot().Safety.LimitActive)

	r.clock.Set(at(23, 30).Add(time.Hour))
	assert.True(t, r.ctrl.Tick().LimitReset)
	assert.Equal(t, logic.NoticeLimitReset, r.notes.last())

	snap := r.ctrl.Snapshot()
	assert.False(t, snap.Safety.LimitActive)
	assert.Zero(t, snap.Safety.CumulativeOpen)
}

func TestDriveFaultLeavesStateUnchanged(t *testing.T) {
	r := newRig(t, at(12, 0), 0)
	r.bridge.DriveError = errors.New("bus error")

	assert.Equal(t, OutcomeFault, r.ctrl.Request(true))
	assert.False(t, r.ctrl.IsOpen())
	assert.Equal(t, logic.NoticeDriveFault, r.notes.last())
	assert.Equal(t, gpio.Drive{}, r.bridge.Last())
	assert.False(t, r.ctrl.Snapshot().Safety.Open())

	r.bridge.DriveError = nil
	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	r.bridge.DriveError = errors.New("bus error")
	assert.Equal(t, OutcomeFault, r.ctrl.Request(false))
	assert.True(t, r.ctrl.IsOpen())

	r.bridge.DriveError = nil
	assert.Equal(t, OutcomeClosed, r.ctrl.Request(false))
	assert.Equal(t, 2, r.ctrl.Snapshot().Faults)
}

func TestSenseFaultDrivesNothing(t *testing.T) {
	r := newRig(t, at(12, 0), 0)
	r.adc.ReadError = errors.New("iio gone")

	assert.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	assert.Equal(t, []gpio.Drive{{IN1: 0, IN2: 0}, {IN1: 0, IN2: 0}}, r.bridge.History())
	assert.Contains(t, r.notes.notices, logic.NoticeSenseFault)
	assert.True(t, r.ctrl.Snapshot().LastDuty.Degraded)
}

func TestYieldHookRunsDuringTravel(t *testing.T) {
	r := newRig(t, at(12, 0), 0)

	var calls int
	var sawActuating bool
	var inner Outcome
	r.ctrl.SetYield(func(elapsed, total time.Duration) {
		calls++
		assert.LessOrEqual(t, elapsed, total)
		sawActuating = r.ctrl.Snapshot().Actuating
		inner = r.ctrl.Request(false)
	})

	require.Equal(t, OutcomeOpened, r.ctrl.Request(true))
	assert.Equal(t, 20, calls)
	assert.True(t, sawActuating)
	assert.Equal(t, OutcomeBusy, inner)
	assert.True(t, r.ctrl.IsOpen())
	assert.False(t, r.ctrl.Snapshot().Actuating)
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "opened", OutcomeOpened.String())
	assert.Equal(t, "busy", OutcomeBusy.String())
	assert.Equal(t, "unknown", Outcome(99).String())
	assert.Equal(t, "reverse", Reverse.String())
}
