// Package transit monitors guarantee-backed movements: seal integrity,
// route compliance and time limits. The monitor reports findings; the
// clearance state machine decides what they cost.
package transit

import (
	"math"
	"sort"
	"time"
)

// Waypoint is one point of the authorized corridor.
type Waypoint struct {
	Code string  `json:"code"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// SealCheck is the result of comparing the seal set presented at exit
// against the set recorded at sealing time. Missing and unexpected seals
// are reported separately so penalty calculation can tell loss from
// tampering.
type SealCheck struct {
	Intact     bool     `json:"intact"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
}

// VerifySeals compares the expected and presented seal sets. A subset
// (missing seal) and a superset (extra seal) are both violations.
func VerifySeals(expected, presented []string) SealCheck {
	exp := make(map[string]bool, len(expected))
	for _, s := range expected {
		exp[s] = true
	}
	pres := make(map[string]bool, len(presented))
	for _, s := range presented {
		pres[s] = true
	}

	check := SealCheck{}
	for s := range exp {
		if !pres[s] {
			check.Missing = append(check.Missing, s)
		}
	}
	for s := range pres {
		if !exp[s] {
			check.Unexpected = append(check.Unexpected, s)
		}
	}
	sort.Strings(check.Missing)
	sort.Strings(check.Unexpected)
	check.Intact = len(check.Missing) == 0 && len(check.Unexpected) == 0
	return check
}

// RouteCheck is the result of evaluating a reported position against the
// authorized corridor.
type RouteCheck struct {
	Compliant   bool    `json:"compliant"`
	DeviationKm float64 `json:"deviation_km"`
}

// CheckRouteCompliance measures the distance from a position to the
// nearest corridor leg. Positions within the tolerance are compliant; a
// single waypoint corridor degenerates to a point check.
func CheckRouteCompliance(lat, lon float64, corridor []Waypoint, toleranceKm float64) RouteCheck {
	if len(corridor) == 0 {
		return RouteCheck{Compliant: true}
	}

	best := math.MaxFloat64
	if len(corridor) == 1 {
		best = distanceKm(lat, lon, corridor[0].Lat, corridor[0].Lon)
	}
	for i := 0; i+1 < len(corridor); i++ {
		d := distanceToLegKm(lat, lon, corridor[i], corridor[i+1])
		if d < best {
			best = d
		}
	}

	if best <= toleranceKm {
		return RouteCheck{Compliant: true, DeviationKm: 0}
	}
	return RouteCheck{Compliant: false, DeviationKm: best - toleranceKm}
}

// TimeLimitExceeded is a pure comparison of the movement's limit against
// the caller-supplied clock.
func TimeLimitExceeded(limit, now time.Time) bool {
	return now.After(limit)
}

const earthRadiusKm = 6371.0

// distanceKm is the haversine great-circle distance.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// distanceToLegKm projects the position onto a corridor leg using a local
// equirectangular approximation, adequate for corridor-scale distances.
func distanceToLegKm(lat, lon float64, a, b Waypoint) float64 {
	rad := math.Pi / 180
	refCos := math.Cos(lat * rad)

	ax := (a.Lon - lon) * refCos
	ay := a.Lat - lat
	bx := (b.Lon - lon) * refCos
	by := b.Lat - lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = -(ax*dx + ay*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Sqrt(cx*cx+cy*cy) * rad * earthRadiusKm
}
