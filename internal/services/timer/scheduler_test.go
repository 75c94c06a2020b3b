package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/testutil"
)

type SchedulerSuite struct {
	suite.Suite
	clock     *mocks.MockClock
	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.scheduler = New(s.clock, testutil.NopLogger())
}

func (s *SchedulerSuite) TearDownTest() {
	s.scheduler.StopAll()
}

func (s *SchedulerSuite) nextTick() Tick {
	select {
	case tick := <-s.scheduler.Ticks():
		return tick
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for tick")
		return Tick{}
	}
}

func (s *SchedulerSuite) assertNoTick() {
	select {
	case tick := <-s.scheduler.Ticks():
		s.Failf("unexpected tick", "%+v", tick)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *SchedulerSuite) TestCountdownTicksDownAndExpires() {
	key := RoomKey("1234")
	gen := s.scheduler.StartCountdown(key, 3, time.Second)

	var values []int
	for i := 0; i < 3; i++ {
		s.clock.Advance(time.Second)
		tick := s.nextTick()
		s.Equal(key, tick.Key)
		s.Equal(KindCountdown, tick.Kind)
		s.Equal(gen, tick.Generation)
		values = append(values, tick.Value)
		s.Equal(tick.Value == 0, tick.Expired)
	}

	s.Equal([]int{2, 1, 0}, values)
	s.False(s.scheduler.Active(key))
	s.True(s.scheduler.IsCurrent(key, gen), "final tick stays current until the key is reused")

	s.clock.Advance(time.Second)
	s.assertNoTick()
}

func (s *SchedulerSuite) TestCountdownFromZeroExpiresOnFirstTick() {
	key := RoomKey("1234")
	s.scheduler.StartCountdown(key, 0, time.Second)

	s.clock.Advance(time.Second)
	tick := s.nextTick()

	s.Equal(0, tick.Value)
	s.True(tick.Expired)
}

func (s *SchedulerSuite) TestRestartReplacesPreviousHandle() {
	key := RoomKey("1234")
	first := s.scheduler.StartCountdown(key, 10, time.Second)

	s.clock.Advance(time.Second)
	s.Equal(9, s.nextTick().Value)

	second := s.scheduler.StartCountdown(key, 5, time.Second)
	s.NotEqual(first, second)
	s.Equal(1, s.scheduler.Len())
	s.False(s.scheduler.IsCurrent(key, first))

	s.clock.Advance(time.Second)
	tick := s.nextTick()
	s.Equal(second, tick.Generation)
	s.Equal(4, tick.Value)
	s.assertNoTick()
}

func (s *SchedulerSuite) TestStopIdleKeyIsNoOp() {
	s.False(s.scheduler.Stop(RoomKey("9999")))
	s.False(s.scheduler.Stop(RoomKey("9999")))
	s.Equal(0, s.scheduler.Len())
}

func (s *SchedulerSuite) TestStopCancelsTicks() {
	key := RoomKey("1234")
	gen := s.scheduler.StartCountdown(key, 10, time.Second)

	s.True(s.scheduler.Stop(key))
	s.False(s.scheduler.IsCurrent(key, gen))

	s.clock.Advance(time.Second)
	s.assertNoTick()
}

func (s *SchedulerSuite) TestElapsedCountsUpWithoutExpiring() {
	key := HistogramKey("1234", "conn-1")
	s.scheduler.StartElapsed(key, 500*time.Millisecond)

	for want := 1; want <= 4; want++ {
		s.clock.Advance(500 * time.Millisecond)
		tick := s.nextTick()
		s.Equal(KindElapsed, tick.Kind)
		s.Equal(want, tick.Value)
		s.False(tick.Expired)
	}
	s.True(s.scheduler.Active(key))
}

func (s *SchedulerSuite) TestNonPositiveIntervalUsesDefault() {
	key := RoomKey("1234")
	s.scheduler.StartCountdown(key, 5, 0)

	s.clock.Advance(DefaultInterval / 2)
	s.assertNoTick()

	s.clock.Advance(DefaultInterval / 2)
	s.Equal(4, s.nextTick().Value)
}

func (s *SchedulerSuite) TestFallbackIntervalIsConfigurable() {
	s.scheduler.WithFallbackInterval(250 * time.Millisecond)
	key := RoomKey("1234")
	s.scheduler.StartCountdown(key, 5, -1)

	s.clock.Advance(250 * time.Millisecond)
	s.Equal(4, s.nextTick().Value)
}

func (s *SchedulerSuite) TestStopRoomOnlyAffectsThatRoom() {
	var room model.AccessCode = "1234"
	s.scheduler.StartCountdown(RoomKey(room), 30, time.Second)
	s.scheduler.StartElapsed(HistogramKey(room, "conn-1"), time.Second)
	s.scheduler.StartElapsed(HistogramKey(room, "conn-2"), time.Second)
	s.scheduler.StartCountdown(RoomKey("5678"), 30, time.Second)

	s.Equal(3, s.scheduler.StopRoom(room))
	s.Equal(1, s.scheduler.Len())
	s.True(s.scheduler.Active(RoomKey("5678")))
}

func (s *SchedulerSuite) TestHistogramKeysDoNotCollideWithRooms() {
	s.NotEqual(RoomKey("12345"), HistogramKey("1234", "5"))
}
