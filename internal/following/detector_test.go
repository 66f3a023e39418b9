package following

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/geo"
	"github.com/srg/blradar/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testAddress = "AA:BB:CC:DD:EE:FF"
	minute      = int64(60_000)
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Query(ctx context.Context, address string, fromMs, toMs int64) ([]device.LocationPoint, error) {
	args := m.Called(ctx, address, fromMs, toMs)
	points, _ := args.Get(0).([]device.LocationPoint)
	return points, args.Error(1)
}

// track builds location points at the given north offsets from start, one per minute ending at nowMs.
func track(start geo.Point, nowMs int64, northMeters ...float64) []device.LocationPoint {
	points := make([]device.LocationPoint, len(northMeters))
	for i, n := range northMeters {
		p := geo.Offset(start, n, 0)
		points[i] = device.LocationPoint{Lat: p.Lat, Lng: p.Lng, TimestampMs: nowMs - int64(len(northMeters)-1-i)*minute}
	}
	return points
}

type DetectorTestSuite struct {
	suite.Suite

	history *mockHistory
	start   geo.Point
	now     int64
}

func (s *DetectorTestSuite) SetupTest() {
	s.history = &mockHistory{}
	s.start = geo.Point{Lat: 48.1351, Lng: 11.5820}
	s.now = 1_700_000_000_000
}

func (s *DetectorTestSuite) detector(cfg Config) *Detector {
	return NewDetector(cfg, s.history, testutils.NewSilentLogger())
}

func (s *DetectorTestSuite) expectHistory(points []device.LocationPoint) {
	s.history.On("Query", mock.Anything, testAddress, s.now-30*minute, s.now).Return(points, nil)
}

func (s *DetectorTestSuite) TestStraightLineAboveThresholds() {
	s.expectHistory(track(s.start, s.now, 0, 150, 301))

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 10*minute, nil, s.now)
	s.Require().NoError(err)
	s.True(following)
}

func (s *DetectorTestSuite) TestStraightLineBelowThresholds() {
	s.expectHistory(track(s.start, s.now, 0, 150, 299))

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 10*minute, nil, s.now)
	s.Require().NoError(err)
	s.False(following)
}

func (s *DetectorTestSuite) TestExactThresholdsAreInclusive() {
	// GOAL: Verify both comparisons are >= by pinning thresholds to the computed values
	//
	// TEST SCENARIO: thresholds equal to path length and displacement → true; either nudged up by one ulp → false
	points := track(s.start, s.now, 0, 150, 300)
	s.expectHistory(points)

	path := geo.Distance(points[0].Point(), points[1].Point()) + geo.Distance(points[1].Point(), points[2].Point())
	displacement := geo.Distance(points[0].Point(), points[2].Point())

	exact := Config{MinSegmentMeters: path, MinDisplacementMeters: displacement}
	following, err := s.detector(exact).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.True(following, "values equal to thresholds MUST count as following")

	longer := Config{MinSegmentMeters: math.Nextafter(path, math.Inf(1)), MinDisplacementMeters: displacement}
	following, err = s.detector(longer).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.False(following, "path below threshold MUST NOT count")

	farther := Config{MinSegmentMeters: path, MinDisplacementMeters: math.Nextafter(displacement, math.Inf(1))}
	following, err = s.detector(farther).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.False(following, "displacement below threshold MUST NOT count")
}

func (s *DetectorTestSuite) TestJitterWithoutDisplacement() {
	// Many points bouncing within 40m: long path, no displacement.
	offsets := make([]float64, 30)
	for i := range offsets {
		offsets[i] = float64((i % 2) * 40)
	}
	s.expectHistory(track(s.start, s.now, offsets...))

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.False(following)
}

func (s *DetectorTestSuite) TestPointsAreOrderedByTime() {
	// Out of order delivery: chronologically 0 → 400 → 0 gives no displacement.
	points := track(s.start, s.now, 0, 400, 0)
	points[0], points[1] = points[1], points[0]
	s.expectHistory(points)

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.False(following)
}

func (s *DetectorTestSuite) TestPointsOutsideWindowAreIgnored() {
	points := track(s.start, s.now, 0, 400)
	points[0].TimestampMs = s.now - 31*minute
	s.expectHistory(points)

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.Require().NoError(err)
	s.False(following, "a single in-window point MUST NOT count as following")
}

func (s *DetectorTestSuite) TestEmptyAndSinglePointHistory() {
	for _, points := range [][]device.LocationPoint{nil, track(s.start, s.now, 0)} {
		s.history = &mockHistory{}
		s.expectHistory(points)

		following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
		s.Require().NoError(err)
		s.False(following)
	}
}

func (s *DetectorTestSuite) TestCooldownSkipsHistory() {
	// GOAL: Verify a recent detection suppresses evaluation without I/O
	//
	// TEST SCENARIO: last detection 5 min ago, interval 10 min → false and Query never called
	last := s.now - 5*minute

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 10*minute, &last, s.now)
	s.Require().NoError(err)
	s.False(following)
	s.history.AssertNotCalled(s.T(), "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *DetectorTestSuite) TestCooldownExpired() {
	last := s.now - 10*minute
	s.expectHistory(track(s.start, s.now, 0, 200, 400))

	following, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 10*minute, &last, s.now)
	s.Require().NoError(err)
	s.True(following, "cooldown ends once the interval has fully elapsed")
}

func (s *DetectorTestSuite) TestHistoryErrorPropagates() {
	boom := errors.New("disk on fire")
	s.history.On("Query", mock.Anything, testAddress, mock.Anything, mock.Anything).Return(nil, boom)

	_, err := s.detector(DefaultConfig()).IsFollowing(context.Background(), testAddress, 30*minute, 0, nil, s.now)
	s.ErrorIs(err, boom)
}

func TestDetectorTestSuite(t *testing.T) {
	suite.Run(t, new(DetectorTestSuite))
}
