// Package matcher scores a candidate message against each of a
// vessel's active segments and selects a winner, a new segment, or a
// noise classification.
package matcher

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/billglover/aissegment/geo"
	"github.com/billglover/aissegment/message"
	"github.com/billglover/aissegment/segment"
)

// minHoursDivisor guards the implied-speed division from a zero Δt.
const minHoursDivisor = 1.0 / 3600.0 // one second, in hours

// jitterWindowHours is the Δt below which the implied-speed tolerance
// relaxes to absorb GPS jitter between consecutive reports.
const jitterWindowHours = 1.0 / 60.0 // one minute

// Config bundles the tunables the matcher needs. It mirrors
// segmenter.Config's matching-relevant fields so this package does not
// import segmenter.
type Config struct {
	MaxHours                float64
	MaxSpeedKn              float64
	ReportedSpeedMultiplier float64
	NoiseDistNM             float64
	NoiseTime               time.Duration
	PenaltySpeed            float64
	BufferNM                float64
}

// Candidate is the per-segment match record the matcher computes,
// optionally surfaced to callers as diagnostics when
// segmenter.Config.CollectMatchStats is enabled.
type Candidate struct {
	SegmentID        string
	DeltaHours       float64
	Discrepancy      float64 // NaN if the positional check did not apply
	MaxDiscrepancy   float64 // NaN if the positional check did not apply
	PositionalOK     bool
	ReportedSpeedOK  bool
	ImpliedSpeedOK   bool
	ImpliedSpeedKn   float64
	Identity         segment.IdentityMatch
	WeightedIdentity int
	SameTypeClass    bool
	NoiseCandidate   bool
	Stale            bool
	Disqualified     bool

	// lastPositionalAt is the segment's last_positional_msg timestamp,
	// used only for the "most recent wins" tie-break (step 3c); zero if
	// the segment has never had a position.
	lastPositionalAt time.Time
	bornAt           time.Time
	bornSeq          int
}

// Action is the outcome of Evaluate.
type Action int

const (
	ActionAssign Action = iota
	ActionNew
	ActionNoise
)

// Decision is the matcher's output: which action to take, and (for
// ActionAssign) which segment won.
type Decision struct {
	Action    Action
	SegmentID string
	Stats     []Candidate
}

// Evaluate scores m against every segment in active and selects a
// winner.
func Evaluate(m message.Message, active []*segment.LiveSegment, cfg Config) Decision {
	stats := make([]Candidate, 0, len(active))

	for _, s := range active {
		stats = append(stats, evaluateOne(m, s, cfg))
	}

	survivors := lo.Filter(stats, func(c Candidate, _ int) bool {
		return !c.Disqualified && !c.Stale
	})

	if len(survivors) == 0 {
		return Decision{Action: ActionNew, Stats: stats}
	}

	if lo.SomeBy(survivors, func(c Candidate) bool { return c.NoiseCandidate }) {
		return Decision{Action: ActionNoise, Stats: stats}
	}

	winner := rank(survivors)
	return Decision{Action: ActionAssign, SegmentID: winner.SegmentID, Stats: stats}
}

func evaluateOne(m message.Message, s *segment.LiveSegment, cfg Config) Candidate {
	c := Candidate{
		SegmentID:       s.ID(),
		Discrepancy:     math.NaN(),
		MaxDiscrepancy:  math.NaN(),
		PositionalOK:    true,
		ReportedSpeedOK: true,
		ImpliedSpeedOK:  true,
		bornAt:          s.BornAt(),
		bornSeq:         s.BornSeq(),
	}

	mFix := toGeoFix(m)

	if s.LastPositional != nil {
		c.lastPositionalAt = s.LastPositional.Timestamp
	}

	var reference *segment.KinematicFix
	positionalBoth := m.HasPosition() && s.LastPositional != nil
	if positionalBoth {
		reference = s.LastPositional
	} else {
		reference = s.LastAny
	}

	if reference != nil {
		c.DeltaHours = geo.Hours(reference.ToGeoFix(), mFix)
	}

	if c.DeltaHours > cfg.MaxHours {
		c.Stale = true
		return c
	}

	if positionalBoth {
		c.Discrepancy = geo.Discrepancy(s.LastPositional.ToGeoFix(), mFix)
		c.MaxDiscrepancy = geo.MaxAllowedDiscrepancy(c.DeltaHours, cfg.PenaltySpeed, cfg.BufferNM)
		c.PositionalOK = c.Discrepancy <= c.MaxDiscrepancy

		c.ReportedSpeedOK = m.Speed == nil || *m.Speed <= cfg.MaxSpeedKn*cfg.ReportedSpeedMultiplier

		dt := c.DeltaHours
		if dt < minHoursDivisor {
			dt = minHoursDivisor
		}
		dist := geo.Distance(s.LastPositional.Position, mFix.Position)
		c.ImpliedSpeedKn = dist / dt
		c.ImpliedSpeedOK = c.ImpliedSpeedKn <= cfg.MaxSpeedKn*speedTolerance(c.DeltaHours)

		if dist <= cfg.NoiseDistNM && time.Duration(c.DeltaHours*float64(time.Hour)) <= cfg.NoiseTime {
			c.NoiseCandidate = true
		}
	}

	c.Identity = s.IdentityMatches(m)
	c.WeightedIdentity = c.Identity.WeightedMatchScore()
	c.SameTypeClass = s.LastAny != nil && message.ClassOf(s.LastAny.Type) == message.ClassOf(m.Type)

	c.Disqualified = !c.PositionalOK || !c.ReportedSpeedOK || !c.ImpliedSpeedOK || c.Identity.AnyHardMismatch()

	return c
}

// speedTolerance relaxes the implied-speed cap to 2x at very short Δt
// (< 1 minute) to absorb GPS jitter between consecutive reports.
func speedTolerance(dtHours float64) float64 {
	if dtHours < jitterWindowHours {
		return 2.0
	}
	return 1.0
}

func toGeoFix(m message.Message) geo.Fix {
	f := geo.Fix{Timestamp: m.Timestamp, Speed: math.NaN(), Course: math.NaN()}
	if m.Lat != nil {
		f.Position.Lat = *m.Lat
	}
	if m.Lon != nil {
		f.Position.Lon = *m.Lon
	}
	if m.Speed != nil {
		f.Speed = *m.Speed
	}
	if m.Course != nil {
		f.Course = *m.Course
	}
	return f
}

// rank applies the lexicographic tie-break tuple: (a) weighted identity
// score desc, (b) same type-class desc, (c) most recent
// last-positional-fix timestamp wins, (d) smallest discrepancy asc,
// (e) earliest-born segment wins the final tie.
func rank(survivors []Candidate) Candidate {
	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]

		if a.WeightedIdentity != b.WeightedIdentity {
			return a.WeightedIdentity > b.WeightedIdentity
		}
		if a.SameTypeClass != b.SameTypeClass {
			return a.SameTypeClass
		}
		if !a.lastPositionalAt.Equal(b.lastPositionalAt) {
			return a.lastPositionalAt.After(b.lastPositionalAt)
		}
		if !sameDiscrepancy(a, b) {
			return a.Discrepancy < b.Discrepancy
		}
		if !a.bornAt.Equal(b.bornAt) {
			return a.bornAt.Before(b.bornAt)
		}
		return a.bornSeq < b.bornSeq
	})
	return survivors[0]
}

func sameDiscrepancy(a, b Candidate) bool {
	if math.IsNaN(a.Discrepancy) && math.IsNaN(b.Discrepancy) {
		return true
	}
	return a.Discrepancy == b.Discrepancy
}
