// Package geo provides the pure numeric primitives behind segment
// matching: great-circle distance and bearing, dead-reckoned position
// projection, and the discrepancy/tolerance math the matcher scores
// candidates against.
package geo

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadiusNM is the mean Earth radius in nautical miles.
const EarthRadiusNM = 3440.065

const metersPerNM = 1852.0

// SlackCoeffNM is the coefficient (NM per sqrt-hour) applied to the
// forecast-uncertainty term of MaxAllowedDiscrepancy, modeling how
// positional uncertainty grows with the square root of elapsed time.
const SlackCoeffNM = 2.0

// Point is a bare lat/lon pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

func (p Point) orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Fix is the minimal kinematic snapshot the discrepancy math needs: a
// timestamp, a position, and optionally course/speed. Missing
// course/speed are represented as NaN; the functions below propagate
// that absence rather than treating it as zero.
type Fix struct {
	Timestamp time.Time
	Position  Point
	Speed     float64 // knots; NaN if absent
	Course    float64 // degrees; NaN if absent
}

// Distance returns the great-circle distance between a and b in
// nautical miles.
func Distance(a, b Point) float64 {
	return geo.Distance(a.orb(), b.orb()) / metersPerNM
}

// Bearing returns the initial bearing from a to b, in degrees.
func Bearing(a, b Point) float64 {
	return geo.Bearing(a.orb(), b.orb())
}

// Project returns the dead-reckoned position reached from p after
// travelling at courseDeg/speedKn for the given number of hours.
// orb/geo has no destination-point primitive (it covers distance and
// bearing only), so the inverse great-circle formula is implemented
// directly here.
func Project(p Point, courseDeg, speedKn, hours float64) Point {
	if hours <= 0 || speedKn == 0 || math.IsNaN(courseDeg) || math.IsNaN(speedKn) {
		return p
	}

	distNM := speedKn * hours
	angularDist := distNM / EarthRadiusNM

	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	brng := courseDeg * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angularDist) +
		math.Cos(lat1)*math.Sin(angularDist)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(angularDist)*math.Cos(lat1),
		math.Cos(angularDist)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: lat2 * 180 / math.Pi,
		Lon: math.Mod(lon2*180/math.Pi+540, 360) - 180,
	}
}

// Hours returns the elapsed time between two fixes, in hours.
func Hours(a, b Fix) float64 {
	return b.Timestamp.Sub(a.Timestamp).Hours()
}

// Discrepancy is the core scalar: the distance, in NM, between obs's
// position and the dead-reckoned prediction from prev. If prev's
// course or speed is missing or invalid, it falls back to the plain
// distance between the two fixes.
func Discrepancy(prev, obs Fix) float64 {
	if math.IsNaN(prev.Course) || math.IsNaN(prev.Speed) || prev.Speed < 0 {
		return Distance(prev.Position, obs.Position)
	}

	dt := Hours(prev, obs)
	predicted := Project(prev.Position, prev.Course, prev.Speed, dt)
	return Distance(predicted, obs.Position)
}

// MaxAllowedDiscrepancy is the piecewise bound on Discrepancy for a gap
// of dtHours: a baseline that grows linearly with penaltySpeed, a
// floor (bufferNM) that absorbs GPS noise at very small Δt, and a
// slack term growing with sqrt(Δt) to model forecast uncertainty.
// Monotone non-decreasing in dtHours.
func MaxAllowedDiscrepancy(dtHours, penaltySpeed, bufferNM float64) float64 {
	if dtHours < 0 {
		dtHours = 0
	}
	return penaltySpeed*dtHours + bufferNM + SlackCoeffNM*math.Sqrt(dtHours)
}
