package segmenter

import (
	"time"

	"github.com/billglover/aissegment/segment"
)

// SegmentSnapshot is the serializable form of one active (Positional
// or Info) segment. Bad and Noise segments are terminal and are never
// part of the active set, so they never appear here — restoring
// therefore filters them out by construction.
type SegmentSnapshot struct {
	ID             string
	Kind           segment.Kind
	BornAt         time.Time
	BornSeq        int
	LastMsgTime    time.Time
	MsgCount       int
	LastPositional *segment.KinematicFix
	LastAny        *segment.KinematicFix
	Identity       segment.IdentitySnapshot
	MessageIDs     []string
}

// Snapshot is the opaque state a caller persists across restarts and
// later feeds back to Restore.
type Snapshot struct {
	SSVID         int64
	LastTimestamp time.Time
	HasLast       bool
	SeqCounters   map[string]int
	Segments      []SegmentSnapshot
}

// Snapshot captures the Segmenter's entire active-segment state. The
// storage format and transport of the resulting value are the
// caller's concern; this only defines the in-memory shape.
func (sg *Segmenter) Snapshot() Snapshot {
	segs := make([]SegmentSnapshot, 0, len(sg.active))
	for _, s := range sg.active {
		segs = append(segs, SegmentSnapshot{
			ID:             s.ID(),
			Kind:           s.Kind(),
			BornAt:         s.BornAt(),
			BornSeq:        s.BornSeq(),
			LastMsgTime:    s.LastMsgTime(),
			MsgCount:       s.MsgCount(),
			LastPositional: s.LastPositional,
			LastAny:        s.LastAny,
			Identity:       s.Identity.Snapshot(),
			MessageIDs:     append([]string(nil), s.MessageIDs...),
		})
	}

	counters := make(map[string]int, len(sg.seqCounters))
	for k, v := range sg.seqCounters {
		counters[k] = v
	}

	return Snapshot{
		SSVID:         sg.ssvid,
		LastTimestamp: sg.lastTimestamp,
		HasLast:       sg.hasLast,
		SeqCounters:   counters,
		Segments:      segs,
	}
}

// Restore reconstructs a Segmenter from a Snapshot taken by a prior
// instance's Snapshot call. The id counter and every identity entry's
// observation timestamps are preserved exactly, so the restored
// Segmenter produces byte-identical output from the next message
// onward to what an uninterrupted run would have.
func Restore(cfg Config, snap Snapshot) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sg := &Segmenter{
		ssvid:         snap.SSVID,
		cfg:           cfg,
		seqCounters:   make(map[string]int, len(snap.SeqCounters)),
		lastTimestamp: snap.LastTimestamp,
		hasLast:       snap.HasLast,
	}
	for k, v := range snap.SeqCounters {
		sg.seqCounters[k] = v
	}

	identCfg := sg.identityConfig()
	for _, ss := range snap.Segments {
		identity := segment.RestoreIdentityStore(ss.Identity, cfg.IdentCap, identCfg)
		live := segment.RestoreLive(ss.Kind, ss.ID, snap.SSVID, ss.BornAt, ss.BornSeq,
			ss.LastMsgTime, ss.MsgCount, ss.LastPositional, ss.LastAny, identity, ss.MessageIDs)
		sg.active = append(sg.active, live)
	}

	return sg, nil
}
