// Package message implements per-message validation, normalization,
// and identity-tuple extraction for incoming AIS records.
package message

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Kind classifies a single message as unusable, identity-only, or
// carrying a position fix.
type Kind int

const (
	KindBad Kind = iota
	KindInfo
	KindPositional
)

func (k Kind) String() string {
	switch k {
	case KindBad:
		return "bad"
	case KindInfo:
		return "info"
	case KindPositional:
		return "positional"
	default:
		return "unknown"
	}
}

// TypeClass groups an AIS message type into class-A positional,
// class-B positional, or other.
type TypeClass string

const (
	TypeClassA     TypeClass = "A"
	TypeClassB     TypeClass = "B"
	TypeClassOther TypeClass = "other"
)

var classATypes = map[int]bool{1: true, 2: true, 3: true}
var classBTypes = map[int]bool{18: true, 19: true}
var identityTypes = map[int]bool{5: true, 19: true, 24: true}

// ClassOf returns the TypeClass for an AIS message type.
func ClassOf(msgType int) TypeClass {
	switch {
	case classATypes[msgType]:
		return TypeClassA
	case classBTypes[msgType]:
		return TypeClassB
	default:
		return TypeClassOther
	}
}

// IsIdentityType reports whether msgType is one of the AIS static/voyage
// data types (5, 19, 24) that may carry identity fields without a fix.
func IsIdentityType(msgType int) bool {
	return identityTypes[msgType]
}

// Message is an immutable, already-decoded AIS record. Optional fields
// use pointers so "absent" is distinguishable from a real zero value
// (e.g. latitude 0.0 on the equator).
type Message struct {
	ID          string    `json:"id"`
	SSVID       int64     `json:"ssvid"`
	Timestamp   time.Time `json:"timestamp"`
	HasTime     bool      `json:"-"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
	Course      *float64  `json:"course,omitempty"`
	Heading     *float64  `json:"heading,omitempty"`
	Type        int       `json:"type"`
	Shipname    string    `json:"shipname,omitempty"`
	Callsign    string    `json:"callsign,omitempty"`
	IMO         *int64    `json:"imo,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Length      *float64  `json:"length,omitempty"`
	Width       *float64  `json:"width,omitempty"`
	Receiver    string    `json:"receiver,omitempty"` // ignored for identity purposes
}

// UnmarshalJSON sets HasTime whenever the decoded record carries a
// timestamp field at all, distinguishing "absent" from the zero time.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		Timestamp *time.Time `json:"timestamp"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != nil {
		m.Timestamp = *aux.Timestamp
		m.HasTime = true
	}
	return nil
}

// HasPosition reports whether the message carries a usable lat/lon fix.
func (m Message) HasPosition() bool {
	return m.Lat != nil && m.Lon != nil
}

// Limits bundles the validity thresholds classification depends on.
// These mirror segmenter.Config's max_speed/reported_speed_multiplier so
// message does not import segmenter (kept a leaf package).
type Limits struct {
	MaxSpeedKn              float64
	ReportedSpeedMultiplier float64
}

// Classify buckets a message into Bad (unusable), Info (valid but no
// position), or Positional (valid with a position fix).
func Classify(m Message, lim Limits) Kind {
	if !m.HasTime {
		return KindBad
	}
	if m.Lat != nil && (*m.Lat < -90 || *m.Lat > 90) {
		return KindBad
	}
	if m.Lon != nil && (*m.Lon < -180 || *m.Lon > 180) {
		return KindBad
	}
	if m.Speed != nil {
		max := lim.MaxSpeedKn * lim.ReportedSpeedMultiplier
		if *m.Speed < 0 || *m.Speed > max {
			return KindBad
		}
	}

	if !m.HasPosition() {
		return KindInfo
	}

	return KindPositional
}

// Normalize coerces NaN/±Inf in course, heading, speed, length, and
// width to absent, wraps course into [0, 360), and trims whitespace
// from identity strings. It returns a new Message; the input is left
// untouched.
func Normalize(m Message) Message {
	out := m

	out.Course = cleanFloat(m.Course)
	out.Heading = cleanFloat(m.Heading)
	out.Speed = cleanFloat(m.Speed)
	out.Length = cleanFloat(m.Length)
	out.Width = cleanFloat(m.Width)

	if out.Course != nil {
		wrapped := math.Mod(*out.Course, 360)
		if wrapped < 0 {
			wrapped += 360
		}
		out.Course = &wrapped
	}

	out.Shipname = strings.TrimSpace(m.Shipname)
	out.Callsign = strings.TrimSpace(m.Callsign)
	out.Destination = strings.TrimSpace(m.Destination)

	return out
}

func cleanFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	cp := *v
	return &cp
}

// IdentityTuple is the set of identity attributes the matcher and
// segment identity store compare between a message and a segment.
type IdentityTuple struct {
	Shipname    string
	Callsign    string
	IMO         *int64
	Destination string
	Length      *float64
	Width       *float64
	TypeClass   TypeClass
}

// IdentityTupleOf extracts the identity tuple from a message.
func IdentityTupleOf(m Message) IdentityTuple {
	return IdentityTuple{
		Shipname:    m.Shipname,
		Callsign:    m.Callsign,
		IMO:         m.IMO,
		Destination: m.Destination,
		Length:      m.Length,
		Width:       m.Width,
		TypeClass:   ClassOf(m.Type),
	}
}
