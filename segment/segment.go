// Package segment implements the tagged-variant segment model: the
// Positional, Info, Bad, and Noise segment kinds, their rolling
// kinematic state, and the bounded identity multiset attached to each
// live segment.
package segment

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/billglover/aissegment/geo"
	"github.com/billglover/aissegment/message"
)

// Kind identifies which of the four segment variants a Segment is.
type Kind int

const (
	KindPositional Kind = iota
	KindInfo
	KindBad
	KindNoise
)

func (k Kind) String() string {
	switch k {
	case KindPositional:
		return "Positional"
	case KindInfo:
		return "Info"
	case KindBad:
		return "Bad"
	case KindNoise:
		return "Noise"
	default:
		return "Unknown"
	}
}

// Status is the per-attribute outcome of comparing a message's
// identity value against a segment's confirmed identity store.
type Status int

const (
	Unknown Status = iota
	Match
	Mismatch
)

// IdentityMatch reports, per identity attribute, whether a candidate
// message's value matches, mismatches, or says nothing about a
// segment's confirmed identity.
type IdentityMatch struct {
	Shipname    Status
	Callsign    Status
	IMO         Status
	Destination Status
	Length      Status
	Width       Status
	TypeClass   Status
}

// WeightedMatchScore totals a weighted identity match count used by the
// matcher's ranking: shipname=3, callsign=3, imo=3, destination=1.
func (im IdentityMatch) WeightedMatchScore() int {
	score := 0
	if im.Shipname == Match {
		score += 3
	}
	if im.Callsign == Match {
		score += 3
	}
	if im.IMO == Match {
		score += 3
	}
	if im.Destination == Match {
		score += 1
	}
	return score
}

// AnyHardMismatch reports whether shipname, callsign, or imo mismatch —
// the identity attributes the matcher treats as disqualifying.
func (im IdentityMatch) AnyHardMismatch() bool {
	return im.Shipname == Mismatch || im.Callsign == Mismatch || im.IMO == Mismatch
}

// KinematicFix is the rolling summary of one message's position and
// motion, retained instead of the full payload.
type KinematicFix struct {
	Timestamp time.Time
	Position  geo.Point
	Speed     float64 // knots; NaN if absent
	Course    float64 // degrees; NaN if absent
	Type      int
}

func fixOf(m message.Message) KinematicFix {
	f := KinematicFix{Timestamp: m.Timestamp, Type: m.Type, Speed: math.NaN(), Course: math.NaN()}
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

// ToGeoFix adapts a KinematicFix into the geo package's Fix type for
// discrepancy math.
func (f KinematicFix) ToGeoFix() geo.Fix {
	return geo.Fix{Timestamp: f.Timestamp, Position: f.Position, Speed: f.Speed, Course: f.Course}
}

// FormatID renders a segment id of the form
// {ssvid}-{YYYYMMDDTHHMMSSZ}-{seq}, the first message's timestamp in
// UTC and a per-(ssvid, second) sequence counter starting at 1.
func FormatID(ssvid int64, first time.Time, seq int) string {
	return fmt.Sprintf("%d-%sZ-%d", ssvid, first.UTC().Format("20060102T150405"), seq)
}

// Segment is the common interface all four segment kinds implement.
type Segment interface {
	ID() string
	Kind() Kind
	SSVID() int64
	Active() bool
	LastMsgTime() time.Time
	MsgCount() int
	Age(now time.Time) float64
	IsStale(now time.Time, maxHours float64) bool
	Retire()
	// BornAt and BornSeq identify minting order, used by the matcher's
	// final "earliest-born segment wins" tie-break.
	BornAt() time.Time
	BornSeq() int
}

type base struct {
	id       string
	ssvid    int64
	kind     Kind
	lastTime time.Time
	count    int
	active   bool
	bornAt   time.Time
	bornSeq  int
}

func (b *base) ID() string             { return b.id }
func (b *base) Kind() Kind             { return b.kind }
func (b *base) SSVID() int64           { return b.ssvid }
func (b *base) Active() bool           { return b.active }
func (b *base) LastMsgTime() time.Time { return b.lastTime }
func (b *base) MsgCount() int          { return b.count }
func (b *base) Retire()                { b.active = false }
func (b *base) BornAt() time.Time      { return b.bornAt }
func (b *base) BornSeq() int           { return b.bornSeq }

func (b *base) Age(now time.Time) float64 {
	return now.Sub(b.lastTime).Hours()
}

func (b *base) IsStale(now time.Time, maxHours float64) bool {
	return b.Age(now) > maxHours
}

// LiveSegment is a Positional or Info segment: it accumulates
// messages, rolling kinematic state, and a confirmed-identity store.
type LiveSegment struct {
	base

	LastPositional *KinematicFix
	LastAny        *KinematicFix
	Identity       *IdentityStore
	MessageIDs     []string
}

// NewLive mints a new Positional or Info segment seeded from first,
// using DefaultIdentityConfig for the identity store's confirmation
// policy. seq is the per-(ssvid, second) minting counter the segmenter
// owns, recorded so the matcher can tie-break on birth order.
func NewLive(kind Kind, first message.Message, id string, seq int, identCap int) *LiveSegment {
	return NewLiveWithIdentityConfig(kind, first, id, seq, identCap, DefaultIdentityConfig)
}

// NewLiveWithIdentityConfig is NewLive with an explicit identity
// confirmation policy.
func NewLiveWithIdentityConfig(kind Kind, first message.Message, id string, seq int, identCap int, identCfg IdentityConfig) *LiveSegment {
	s := &LiveSegment{
		base:     base{id: id, ssvid: first.SSVID, kind: kind, lastTime: first.Timestamp, active: true, bornAt: first.Timestamp, bornSeq: seq},
		Identity: NewIdentityStoreWithConfig(identCap, identCfg),
	}
	s.Add(first)
	return s
}

// RestoreLive reconstructs a LiveSegment from previously snapshotted
// fields, for segmenter.Restore. The rebuilt segment is always active;
// callers restoring a Segmenter are only ever supposed to persist
// segments that were still active at snapshot time.
func RestoreLive(kind Kind, id string, ssvid int64, bornAt time.Time, bornSeq int, lastMsgTime time.Time, msgCount int, lastPositional, lastAny *KinematicFix, identity *IdentityStore, messageIDs []string) *LiveSegment {
	return &LiveSegment{
		base: base{
			id: id, ssvid: ssvid, kind: kind,
			lastTime: lastMsgTime, count: msgCount, active: true,
			bornAt: bornAt, bornSeq: bornSeq,
		},
		LastPositional: lastPositional,
		LastAny:        lastAny,
		Identity:       identity,
		MessageIDs:     messageIDs,
	}
}

// Add appends msg to the segment: kinematic state advances only for
// positional messages, but identity is recorded unconditionally.
func (s *LiveSegment) Add(m message.Message) {
	s.count++
	s.lastTime = m.Timestamp
	s.MessageIDs = append(s.MessageIDs, m.ID)

	fix := fixOf(m)
	s.LastAny = &fix
	if m.HasPosition() {
		positional := fix
		s.LastPositional = &positional
	}

	s.Identity.Observe(message.IdentityTupleOf(m), m.Timestamp)
}

// IdentityMatches compares msg's identity tuple against the segment's
// confirmed identity store, per attribute.
func (s *LiveSegment) IdentityMatches(m message.Message) IdentityMatch {
	tup := message.IdentityTupleOf(m)
	asOf := m.Timestamp
	return IdentityMatch{
		Shipname:    s.Identity.Match(AttrShipname, tup.Shipname, asOf),
		Callsign:    s.Identity.Match(AttrCallsign, tup.Callsign, asOf),
		IMO:         s.Identity.Match(AttrIMO, imoKey(tup.IMO), asOf),
		Destination: s.Identity.Match(AttrDestination, tup.Destination, asOf),
		Length:      s.Identity.Match(AttrLength, floatKey(tup.Length), asOf),
		Width:       s.Identity.Match(AttrWidth, floatKey(tup.Width), asOf),
		TypeClass:   s.Identity.Match(AttrTypeClass, string(tup.TypeClass), asOf),
	}
}

// NewBad mints a terminal Bad segment for a single unusable message.
func NewBad(m message.Message, id string, seq int) Segment {
	return &base{id: id, ssvid: m.SSVID, kind: KindBad, lastTime: m.Timestamp, count: 1, active: false, bornAt: m.Timestamp, bornSeq: seq}
}

// NewNoise mints a terminal Noise segment for a single near-duplicate
// positional message.
func NewNoise(m message.Message, id string, seq int) Segment {
	return &base{id: id, ssvid: m.SSVID, kind: KindNoise, lastTime: m.Timestamp, count: 1, active: false, bornAt: m.Timestamp, bornSeq: seq}
}

// IsTerminal reports whether a Kind is a single-message sink that
// never absorbs subsequent messages.
func IsTerminal(k Kind) bool {
	return k == KindBad || k == KindNoise
}

// ActiveIDs returns the ids of segments in ss that are still active,
// preserving order.
func ActiveIDs(ss []Segment) []string {
	active := lo.Filter(ss, func(s Segment, _ int) bool { return s.Active() })
	return lo.Map(active, func(s Segment, _ int) string { return s.ID() })
}
