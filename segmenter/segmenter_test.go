package segmenter

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/billglover/aissegment/geo"
	"github.com/billglover/aissegment/message"
	"github.com/billglover/aissegment/segment"
)

const ssvid = 123456789

func f(v float64) *float64 { return &v }

func pos(ts time.Time, p geo.Point, speed, course float64) message.Message {
	return message.Message{
		ID: ts.String(), SSVID: ssvid, Timestamp: ts, HasTime: true,
		Lat: f(p.Lat), Lon: f(p.Lon), Speed: f(speed), Course: f(course), Type: 1,
	}
}

func epoch(offset time.Duration) time.Time {
	return time.Unix(0, 0).UTC().Add(offset)
}

// Scenario 1: straight track — all three messages land in one segment.
// Each successive position is the exact dead-reckoned projection of the
// previous one, so the discrepancy is ~0 regardless of the chosen
// tolerance constants.
func TestScenarioStraightTrack(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}
	p1 := geo.Project(p0, 0, 10, 1)
	p2 := geo.Project(p1, 0, 10, 1)

	m1, err1 := sg.Process(pos(epoch(0), p0, 10, 0))
	m2, err2 := sg.Process(pos(epoch(time.Hour), p1, 10, 0))
	m3, err3 := sg.Process(pos(epoch(2*time.Hour), p2, 10, 0))

	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)

	want := "123456789-19700101T000000Z-1"
	assert.Equal(t, want, m1.SegmentID)
	assert.Equal(t, want, m2.SegmentID)
	assert.Equal(t, want, m3.SegmentID)
}

// Scenario 2: teleport — an implausible jump starts a new segment.
func TestScenarioTeleport(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}
	far := geo.Point{Lat: 20, Lon: 0}

	m1, err1 := sg.Process(pos(epoch(0), p0, 10, 0))
	m2, err2 := sg.Process(pos(epoch(10*time.Minute), far, 10, 0))

	require.NoError(t, err1)
	require.NoError(t, err2)

	assert.Equal(t, "123456789-19700101T000000Z-1", m1.SegmentID)
	assert.Equal(t, "123456789-19700101T001000Z-2", m2.SegmentID)
	assert.NotEqual(t, m1.SegmentID, m2.SegmentID)
}

// Scenario 3: noise duplicate — a same-position repeat is absorbed as
// noise, and the track resumes from the original segment afterward.
func TestScenarioNoiseDuplicate(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}
	p1 := geo.Project(p0, 0, 10, 1)

	m1, err1 := sg.Process(pos(epoch(0), p0, 0, math.NaN()))
	m2, err2 := sg.Process(pos(epoch(30*time.Second), p0, 0, math.NaN()))
	m3, err3 := sg.Process(pos(epoch(time.Hour), p1, 10, 0))

	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)

	assert.Equal(t, segment.KindPositional, m1.SegmentKind)
	assert.Equal(t, segment.KindNoise, m2.SegmentKind)
	assert.Equal(t, m1.SegmentID, m3.SegmentID)
	assert.NotEqual(t, m1.SegmentID, m2.SegmentID)
}

// Scenario 4: identity split — a hard identity mismatch starts a new
// segment, and a later message with the original identity returns to
// the original segment rather than the short-lived splinter.
func TestScenarioIdentitySplit(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	// Each report lies ~0.21 NM east of the previous one: beyond
	// noise_dist (0.1 NM), so none is absorbed as a noise duplicate, and
	// well within the speed and discrepancy limits.
	p0 := geo.Point{Lat: 0, Lon: 0}
	p1 := geo.Point{Lat: 0, Lon: 0.0035}
	p2 := geo.Point{Lat: 0, Lon: 0.007}
	p3 := geo.Point{Lat: 0, Lon: 0.0105}

	a1 := pos(epoch(0), p0, 0, math.NaN())
	a1.Shipname = "ALPHA"

	// Confirm ALPHA (ident_confirm=2) before the mismatching message
	// arrives, so the mismatch is actually disqualifying.
	aConfirm := pos(epoch(30*time.Second), p1, 0, math.NaN())
	aConfirm.Shipname = "ALPHA"

	a2 := pos(epoch(time.Minute), p2, 0, math.NaN())
	a2.Shipname = "BRAVO"

	a3 := pos(epoch(2*time.Minute), p3, 0, math.NaN())
	a3.Shipname = "ALPHA"

	m1, err1 := sg.Process(a1)
	mConfirm, errConfirm := sg.Process(aConfirm)
	m2, err2 := sg.Process(a2)
	m3, err3 := sg.Process(a3)

	require.NoError(t, err1)
	require.NoError(t, errConfirm)
	require.NoError(t, err2)
	require.NoError(t, err3)

	assert.Equal(t, m1.SegmentID, mConfirm.SegmentID)
	assert.NotEqual(t, m1.SegmentID, m2.SegmentID)
	assert.Equal(t, m1.SegmentID, m3.SegmentID)
}

// Scenario 5: gap retirement — a gap past max_hours always starts a
// new segment, since the original is retired before matching runs.
func TestScenarioGapRetirement(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}

	m1, err1 := sg.Process(pos(epoch(0), p0, 0, math.NaN()))
	m2, err2 := sg.Process(pos(epoch(25*time.Hour), p0, 0, math.NaN()))

	require.NoError(t, err1)
	require.NoError(t, err2)

	assert.NotEqual(t, m1.SegmentID, m2.SegmentID)
	assert.Equal(t, "123456789-19700101T000000Z-1", m1.SegmentID)
	assert.Equal(t, "123456789-19700102T010000Z-2", m2.SegmentID)
}

// Scenario 6: bad value — an out-of-range position is a terminal Bad
// segment that never joins the active set and does not disturb the
// segment id sequence for the next, valid message.
func TestScenarioBadValue(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	bad := message.Message{ID: "bad", SSVID: ssvid, Timestamp: epoch(0), HasTime: true, Lat: f(95.0), Lon: f(0), Type: 1}
	mBad, errBad := sg.Process(bad)
	require.NoError(t, errBad)
	assert.Equal(t, segment.KindBad, mBad.SegmentKind)
	assert.Empty(t, sg.ActiveSegments())

	next, errNext := sg.Process(pos(epoch(time.Minute), geo.Point{Lat: 0, Lon: 0}, 10, 0))
	require.NoError(t, errNext)
	assert.Equal(t, "123456789-19700101T000100Z-1", next.SegmentID)
}

func TestUnsortedInputIsFatal(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}

	_, err1 := sg.Process(pos(epoch(time.Hour), p0, 0, math.NaN()))
	require.NoError(t, err1)

	_, err2 := sg.Process(pos(epoch(0), p0, 0, math.NaN()))
	require.Error(t, err2)

	var unsorted *UnsortedInputError
	require.True(t, errors.As(err2, &unsorted))
	assert.True(t, errors.Is(err2, ErrUnsortedInput))
	assert.Equal(t, int64(ssvid), unsorted.SSVID)
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHours = 0
	_, err := New(ssvid, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSnapshotRestoreProducesSameAssignment(t *testing.T) {
	cfg := DefaultConfig()
	sg, err := New(ssvid, cfg)
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}
	p1 := geo.Project(p0, 0, 10, 1)

	m1, err1 := sg.Process(pos(epoch(0), p0, 10, 0))
	require.NoError(t, err1)

	snap := sg.Snapshot()
	restored, err := Restore(cfg, snap)
	require.NoError(t, err)

	next := pos(epoch(time.Hour), p1, 10, 0)

	wantTagged, wantErr := sg.Process(next)
	gotTagged, gotErr := restored.Process(next)

	require.NoError(t, wantErr)
	require.NoError(t, gotErr)
	assert.Equal(t, wantTagged.SegmentID, gotTagged.SegmentID)
	assert.Equal(t, m1.SegmentID, gotTagged.SegmentID)
}

func TestFlushRetiresEverySegment(t *testing.T) {
	sg, err := New(ssvid, DefaultConfig())
	require.NoError(t, err)

	p0 := geo.Point{Lat: 0, Lon: 0}
	_, err1 := sg.Process(pos(epoch(0), p0, 10, 0))
	require.NoError(t, err1)

	final := sg.Flush()
	require.Len(t, final, 1)
	assert.False(t, final[0].Active())
	assert.Empty(t, sg.ActiveSegments())
}

// --- property-based invariants ---

func genTimestamps(t *rapid.T, n int) []time.Time {
	out := make([]time.Time, n)
	cur := epoch(0)
	for i := 0; i < n; i++ {
		deltaMin := rapid.IntRange(0, 90).Draw(t, "deltaMin")
		cur = cur.Add(time.Duration(deltaMin) * time.Minute)
		out[i] = cur
	}
	return out
}

// TestPropertyTotalityAndOrderPreservation checks that every input
// message produces exactly one tagged output, in input order, each
// carrying a non-empty segment id.
func TestPropertyTotalityAndOrderPreservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "n")
		timestamps := genTimestamps(t, n)

		sg, err := New(ssvid, DefaultConfig())
		require.NoError(t, err)

		var msgs []message.Message
		for i, ts := range timestamps {
			lat := rapid.Float64Range(-1, 1).Draw(t, "lat")
			lon := rapid.Float64Range(-1, 1).Draw(t, "lon")
			speed := rapid.Float64Range(0, 25).Draw(t, "speed")
			course := rapid.Float64Range(0, 360).Draw(t, "course")
			m := pos(ts, geo.Point{Lat: lat, Lon: lon}, speed, course)
			m.ID = time.Duration(i).String() + "-" + ts.String()
			msgs = append(msgs, m)
		}

		var tagged []TaggedMessage
		for _, m := range msgs {
			out, err := sg.Process(m)
			require.NoError(t, err)
			tagged = append(tagged, out)
		}

		require.Equal(t, len(msgs), len(tagged))
		for i := range msgs {
			assert.Equal(t, msgs[i].ID, tagged[i].Message.ID, "order must be preserved")
			assert.NotEmpty(t, tagged[i].SegmentID, "every message must carry a segment id")
		}
	})
}

// TestPropertySegmentIDsAreUniqueWithinOneLifetime checks that every
// terminal (Bad/Noise) segment id is fresh: no earlier message carried it.
func TestPropertySegmentIDsAreUniqueWithinOneLifetime(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		timestamps := genTimestamps(t, n)

		sg, err := New(ssvid, DefaultConfig())
		require.NoError(t, err)

		born := map[string]bool{}
		for _, ts := range timestamps {
			lat := rapid.Float64Range(-5, 5).Draw(t, "lat")
			lon := rapid.Float64Range(-5, 5).Draw(t, "lon")
			out, err := sg.Process(pos(ts, geo.Point{Lat: lat, Lon: lon}, 10, 90))
			require.NoError(t, err)
			if out.SegmentKind == segment.KindBad || out.SegmentKind == segment.KindNoise {
				assert.False(t, born[out.SegmentID])
			}
			born[out.SegmentID] = true
		}
	})
}

// TestPropertyNoiseAbsorption checks that an exact-duplicate positional
// report is always classified as noise rather than joining the track.
func TestPropertyNoiseAbsorption(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sg, err := New(ssvid, DefaultConfig())
		require.NoError(t, err)

		lat := rapid.Float64Range(-5, 5).Draw(t, "lat")
		lon := rapid.Float64Range(-5, 5).Draw(t, "lon")
		p := geo.Point{Lat: lat, Lon: lon}

		first, err1 := sg.Process(pos(epoch(0), p, 0, math.NaN()))
		second, err2 := sg.Process(pos(epoch(0), p, 0, math.NaN()))

		require.NoError(t, err1)
		require.NoError(t, err2)

		assert.Equal(t, segment.KindNoise, second.SegmentKind)
		assert.NotEqual(t, first.SegmentID, second.SegmentID)
	})
}

// TestPropertyGapSplit checks that any gap beyond max_hours always
// starts a new segment.
func TestPropertyGapSplit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gapHours := rapid.Float64Range(24.01, 72).Draw(t, "gapHours")

		sg, err := New(ssvid, DefaultConfig())
		require.NoError(t, err)

		p0 := geo.Point{Lat: 0, Lon: 0}
		first, err1 := sg.Process(pos(epoch(0), p0, 0, math.NaN()))
		second, err2 := sg.Process(pos(epoch(time.Duration(gapHours*float64(time.Hour))), p0, 0, math.NaN()))

		require.NoError(t, err1)
		require.NoError(t, err2)

		assert.NotEqual(t, first.SegmentID, second.SegmentID)
	})
}
