package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanSegmentsCoversShortSourcesContiguously(t *testing.T) {
	segments := planSegments(600, testTuning())

	require.Len(t, segments, 5)
	for i, segment := range segments {
		require.Equal(t, i, segment.Index)
		require.Equal(t, float64(i)*120, segment.Start)
		require.Equal(t, 120.0, segment.Duration)
	}
	require.Equal(t, 600.0, segments[4].End())
}

func TestPlanSegmentsTrimsTrailingWindow(t *testing.T) {
	segments := planSegments(500, testTuning())

	require.Len(t, segments, 5)
	require.Equal(t, 480.0, segments[4].Start)
	require.Equal(t, 20.0, segments[4].Duration)
}

func TestPlanSegmentsSamplesLongSources(t *testing.T) {
	segments := planSegments(7200, testTuning())

	require.Len(t, segments, 15)
	require.Equal(t, 0.0, segments[0].Start)
	require.Equal(t, 6720.0, segments[14].Start)
	for _, segment := range segments {
		require.Equal(t, 120.0, segment.Duration)
	}
}

func TestPlanSegmentsContiguousAtExactCapacity(t *testing.T) {
	// 15 windows of 120s fit exactly; no sampling kicks in.
	segments := planSegments(1800, testTuning())

	require.Len(t, segments, 15)
	require.Equal(t, 1680.0, segments[14].Start)
	require.Equal(t, 120.0, segments[14].Duration)
}

func TestPlanSegmentsFullCoverageIgnoresMaxSegments(t *testing.T) {
	tun := testTuning()
	tun.ForceFullCoverage = true
	tun.MaxSegments = 3

	segments := planSegments(1000, tun)

	require.Len(t, segments, 9)
	require.Equal(t, 960.0, segments[8].Start)
	require.Equal(t, 40.0, segments[8].Duration)
}

func TestPlanSegmentsFullCoverageIsCapped(t *testing.T) {
	tun := testTuning()
	tun.ForceFullCoverage = true
	tun.SegmentDuration = 1

	segments := planSegments(1000, tun)

	require.Len(t, segments, fullCoverageCap)
}

func TestPlanSegmentsEmptySource(t *testing.T) {
	require.Nil(t, planSegments(0, testTuning()))
	require.Nil(t, planSegments(-5, testTuning()))
}
