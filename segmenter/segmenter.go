// Package segmenter is the streaming driver: it owns the active
// segment set for one vessel identifier, runs the matcher against
// each incoming message, tags output, retires stale segments, and
// exposes a snapshot/restore surface for external persistence.
package segmenter

import (
	"time"

	"github.com/billglover/aissegment/matcher"
	"github.com/billglover/aissegment/message"
	"github.com/billglover/aissegment/segment"
)

// TaggedMessage is a message augmented with the segment id it was
// assigned to.
type TaggedMessage struct {
	Message     message.Message
	SegmentID   string
	SegmentKind segment.Kind
	MatchStats  []matcher.Candidate // nil unless CollectMatchStats is set
}

// Segmenter drives one vessel identifier's stream. It is not safe for
// concurrent use; parallelism comes from sharding on ssvid across
// distinct Segmenter instances.
type Segmenter struct {
	ssvid  int64
	cfg    Config
	active []*segment.LiveSegment

	seqCounters   map[string]int
	lastTimestamp time.Time
	hasLast       bool
}

// New constructs a Segmenter for one ssvid. Invalid configuration is
// rejected immediately, before any message is processed.
func New(ssvid int64, cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		ssvid:       ssvid,
		cfg:         cfg,
		seqCounters: make(map[string]int),
	}, nil
}

// SSVID returns the vessel identifier this Segmenter drives.
func (sg *Segmenter) SSVID() int64 { return sg.ssvid }

// ActiveSegments returns the current active set, insertion-ordered.
func (sg *Segmenter) ActiveSegments() []segment.Segment {
	out := make([]segment.Segment, len(sg.active))
	for i, s := range sg.active {
		out[i] = s
	}
	return out
}

// Process assigns m to a segment (existing, newly born, or a
// terminal Bad/Noise sink) and returns the tagged message. Messages
// must arrive in non-decreasing timestamp order for this ssvid; a
// violation returns a non-nil *UnsortedInputError and leaves the
// Segmenter's state untouched.
func (sg *Segmenter) Process(m message.Message) (TaggedMessage, error) {
	if sg.hasLast && m.Timestamp.Before(sg.lastTimestamp) {
		return TaggedMessage{}, &UnsortedInputError{SSVID: sg.ssvid, Previous: sg.lastTimestamp, Next: m.Timestamp}
	}
	sg.lastTimestamp = m.Timestamp
	sg.hasLast = true

	m = message.Normalize(m)

	kind := message.Classify(m, message.Limits{
		MaxSpeedKn:              sg.cfg.MaxSpeedKn,
		ReportedSpeedMultiplier: sg.cfg.ReportedSpeedMultiplier,
	})

	if kind == message.KindBad {
		id, seq := sg.mintID(m.Timestamp)
		s := segment.NewBad(m, id, seq)
		return sg.tag(m, s, nil), nil
	}

	sg.retireStale(m.Timestamp)

	decision := matcher.Evaluate(m, sg.active, sg.matcherConfig())

	switch decision.Action {
	case matcher.ActionNoise:
		id, seq := sg.mintID(m.Timestamp)
		s := segment.NewNoise(m, id, seq)
		return sg.tag(m, s, decision.Stats), nil

	case matcher.ActionAssign:
		s := sg.find(decision.SegmentID)
		s.Add(m)
		return sg.tag(m, s, decision.Stats), nil

	default: // matcher.ActionNew
		newKind := segment.KindPositional
		if kind == message.KindInfo {
			newKind = segment.KindInfo
		}
		id, seq := sg.mintID(m.Timestamp)
		s := segment.NewLiveWithIdentityConfig(newKind, m, id, seq, sg.cfg.IdentCap, sg.identityConfig())
		sg.active = append(sg.active, s)
		return sg.tag(m, s, decision.Stats), nil
	}
}

// Flush retires every active segment and returns their final states.
func (sg *Segmenter) Flush() []segment.Segment {
	out := make([]segment.Segment, len(sg.active))
	for i, s := range sg.active {
		s.Retire()
		out[i] = s
	}
	sg.active = nil
	return out
}

func (sg *Segmenter) identityConfig() segment.IdentityConfig {
	return segment.IdentityConfig{ConfirmCount: sg.cfg.IdentConfirm, Window: sg.cfg.IdentWindow}
}

func (sg *Segmenter) matcherConfig() matcher.Config {
	return matcher.Config{
		MaxHours:                sg.cfg.MaxHours,
		MaxSpeedKn:              sg.cfg.MaxSpeedKn,
		ReportedSpeedMultiplier: sg.cfg.ReportedSpeedMultiplier,
		NoiseDistNM:             sg.cfg.NoiseDistNM,
		NoiseTime:               sg.cfg.NoiseTime,
		PenaltySpeed:            sg.cfg.PenaltySpeed,
		BufferNM:                sg.cfg.BufferNM,
	}
}

func (sg *Segmenter) retireStale(now time.Time) {
	kept := sg.active[:0]
	for _, s := range sg.active {
		if s.IsStale(now, sg.cfg.MaxHours) {
			s.Retire()
			continue
		}
		kept = append(kept, s)
	}
	sg.active = kept
}

func (sg *Segmenter) find(id string) *segment.LiveSegment {
	for _, s := range sg.active {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// mintID allocates the next (ssvid, second) sequence number and
// formats the resulting segment id.
func (sg *Segmenter) mintID(ts time.Time) (string, int) {
	key := ts.UTC().Format("20060102T150405")
	sg.seqCounters[key]++
	seq := sg.seqCounters[key]
	return segment.FormatID(sg.ssvid, ts, seq), seq
}

func (sg *Segmenter) tag(m message.Message, s segment.Segment, stats []matcher.Candidate) TaggedMessage {
	tm := TaggedMessage{Message: m, SegmentID: s.ID(), SegmentKind: s.Kind()}
	if sg.cfg.CollectMatchStats {
		tm.MatchStats = stats
	}
	return tm
}
