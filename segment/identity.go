package segment

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/billglover/aissegment/message"
)

// Attr names one of the identity attributes tracked per segment.
type Attr string

const (
	AttrShipname    Attr = "shipname"
	AttrCallsign    Attr = "callsign"
	AttrIMO         Attr = "imo"
	AttrDestination Attr = "destination"
	AttrLength      Attr = "length"
	AttrWidth       Attr = "width"
	AttrTypeClass   Attr = "type_class"
)

// identConfirmHistory bounds how many recent occurrence timestamps are
// kept per distinct value, just enough to answer "observed >=
// IdentConfirm times within IdentWindow" without an unbounded history.
const identConfirmHistory = 8

type entry struct {
	value      string
	timestamps []time.Time
	firstSeen  time.Time
	lastSeen   time.Time
}

func (e *entry) observe(ts time.Time) {
	if e.firstSeen.IsZero() || ts.Before(e.firstSeen) {
		e.firstSeen = ts
	}
	if ts.After(e.lastSeen) {
		e.lastSeen = ts
	}
	e.timestamps = append(e.timestamps, ts)
	if len(e.timestamps) > identConfirmHistory {
		e.timestamps = e.timestamps[len(e.timestamps)-identConfirmHistory:]
	}
}

// confirmed reports whether e has at least confirmCount observations
// whose timestamps fall within [asOf-window, asOf]. asOf is the
// timestamp of the message being evaluated, not wall-clock time: the
// segmenter replays deterministically over message timestamps, so
// confirmation must never depend on when the process happens to run.
func (e *entry) confirmed(asOf time.Time, confirmCount int, window time.Duration) bool {
	if len(e.timestamps) < confirmCount {
		return false
	}
	n := 0
	cutoff := asOf.Add(-window)
	for _, ts := range e.timestamps {
		if !ts.Before(cutoff) && !ts.After(asOf) {
			n++
		}
	}
	return n >= confirmCount
}

// attrStore is the bounded multiset of recently observed values for
// one identity attribute.
type attrStore struct {
	cap     int
	entries map[string]*entry
}

func newAttrStore(cap int) *attrStore {
	return &attrStore{cap: cap, entries: make(map[string]*entry)}
}

func (s *attrStore) observe(value string, ts time.Time) {
	if value == "" {
		return
	}

	e, ok := s.entries[value]
	if !ok {
		if len(s.entries) >= s.cap {
			s.evictLRU()
		}
		e = &entry{value: value}
		s.entries[value] = e
	}
	e.observe(ts)
}

// evictLRU drops the entry with the oldest lastSeen.
func (s *attrStore) evictLRU() {
	if len(s.entries) == 0 {
		return
	}
	all := lo.Values(s.entries)
	oldest := lo.MinBy(all, func(a, b *entry) bool { return a.lastSeen.Before(b.lastSeen) })
	delete(s.entries, oldest.value)
}

func (s *attrStore) confirmedValues(asOf time.Time, confirmCount int, window time.Duration) []string {
	var out []string
	for v, e := range s.entries {
		if e.confirmed(asOf, confirmCount, window) {
			out = append(out, v)
		}
	}
	return out
}

// IdentityConfig bundles the confirmation parameters.
type IdentityConfig struct {
	ConfirmCount int
	Window       time.Duration
}

// DefaultIdentityConfig requires two observations within 15 minutes
// before a value counts as confirmed.
var DefaultIdentityConfig = IdentityConfig{ConfirmCount: 2, Window: 15 * time.Minute}

// IdentityStore is the atomic identity store attached to each live
// segment: one bounded multiset per identity attribute.
type IdentityStore struct {
	cfg    IdentityConfig
	stores map[Attr]*attrStore
}

// NewIdentityStore creates an empty store capped at capEntries per
// attribute, using DefaultIdentityConfig.
func NewIdentityStore(capEntries int) *IdentityStore {
	return NewIdentityStoreWithConfig(capEntries, DefaultIdentityConfig)
}

// NewIdentityStoreWithConfig creates an empty store with an explicit
// confirmation policy.
func NewIdentityStoreWithConfig(capEntries int, cfg IdentityConfig) *IdentityStore {
	return &IdentityStore{
		cfg: cfg,
		stores: map[Attr]*attrStore{
			AttrShipname:    newAttrStore(capEntries),
			AttrCallsign:    newAttrStore(capEntries),
			AttrIMO:         newAttrStore(capEntries),
			AttrDestination: newAttrStore(capEntries),
			AttrLength:      newAttrStore(capEntries),
			AttrWidth:       newAttrStore(capEntries),
			AttrTypeClass:   newAttrStore(capEntries),
		},
	}
}

// Observe records a message's identity tuple against the store,
// unconditionally — even a message whose values will later mismatch
// still contributes an observation.
func (s *IdentityStore) Observe(tup message.IdentityTuple, ts time.Time) {
	s.stores[AttrShipname].observe(tup.Shipname, ts)
	s.stores[AttrCallsign].observe(tup.Callsign, ts)
	s.stores[AttrIMO].observe(imoKey(tup.IMO), ts)
	s.stores[AttrDestination].observe(tup.Destination, ts)
	s.stores[AttrLength].observe(floatKey(tup.Length), ts)
	s.stores[AttrWidth].observe(floatKey(tup.Width), ts)
	s.stores[AttrTypeClass].observe(string(tup.TypeClass), ts)
}

// Match compares value (already reduced to its canonical string key,
// "" meaning absent) against attr's values confirmed as of asOf — the
// timestamp of the message under evaluation.
func (s *IdentityStore) Match(attr Attr, value string, asOf time.Time) Status {
	confirmed := s.stores[attr].confirmedValues(asOf, s.cfg.ConfirmCount, s.cfg.Window)
	if len(confirmed) == 0 || value == "" {
		return Unknown
	}
	if lo.Contains(confirmed, value) {
		return Match
	}
	return Mismatch
}

// EntrySnapshot is the serializable form of one identity value's
// observation history.
type EntrySnapshot struct {
	Value      string
	Timestamps []time.Time
}

// IdentitySnapshot is the serializable form of an IdentityStore,
// suitable for segmenter.Snapshot/Restore round-tripping.
type IdentitySnapshot map[Attr][]EntrySnapshot

// Snapshot captures the store's current contents.
func (s *IdentityStore) Snapshot() IdentitySnapshot {
	out := make(IdentitySnapshot, len(s.stores))
	for attr, st := range s.stores {
		entries := make([]EntrySnapshot, 0, len(st.entries))
		for _, e := range st.entries {
			entries = append(entries, EntrySnapshot{
				Value:      e.value,
				Timestamps: append([]time.Time(nil), e.timestamps...),
			})
		}
		out[attr] = entries
	}
	return out
}

// RestoreIdentityStore rebuilds an IdentityStore from a snapshot taken
// by Snapshot, preserving every entry's observation timestamps so
// confirmation decisions made after restore match what an
// uninterrupted run would have produced.
func RestoreIdentityStore(snap IdentitySnapshot, capEntries int, cfg IdentityConfig) *IdentityStore {
	st := NewIdentityStoreWithConfig(capEntries, cfg)
	for attr, entries := range snap {
		store, ok := st.stores[attr]
		if !ok {
			continue
		}
		for _, es := range entries {
			e := &entry{value: es.Value, timestamps: append([]time.Time(nil), es.Timestamps...)}
			if len(e.timestamps) > 0 {
				e.firstSeen = e.timestamps[0]
				e.lastSeen = e.timestamps[len(e.timestamps)-1]
			}
			store.entries[es.Value] = e
		}
	}
	return st
}

func imoKey(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func floatKey(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *v)
}
